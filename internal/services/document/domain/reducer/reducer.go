// Package reducer defines the pure state transition contract of a document
// type and the outcome a transition reports.
package reducer

import (
	"errors"
	"fmt"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
)

var (
	// ErrUnknownAction indicates an action type the reducer has no branch for.
	// It is an integrity failure, never a domain rejection.
	ErrUnknownAction = errors.New("action type is not handled by reducer")
	// ErrStateType indicates a scratch state of the wrong concrete type.
	ErrStateType = errors.New("unexpected scope state type")
)

// State is the JSON-serializable state of one scope. Clone must return a deep
// copy; reducers mutate the clone in place.
type State interface {
	Clone() State
}

// Rejection is a domain rule violation. The operation is still recorded with
// the rejection attached, and the state is left unchanged.
type Rejection struct {
	Code    string
	Message string
}

func (r Rejection) Error() string {
	return r.Code + ": " + r.Message
}

// Reduction is the outcome of reducing one action.
type Reduction struct {
	Signals   []signal.Signal
	Rejection *Rejection
}

// Rejected reports whether the reduction carries a domain rejection.
func (r Reduction) Rejected() bool {
	return r.Rejection != nil
}

// Accept returns a reduction that emits the provided signals.
func Accept(signals ...signal.Signal) Reduction {
	return Reduction{Signals: append([]signal.Signal(nil), signals...)}
}

// Emit returns a reduction that emits one signal built from payload. A payload
// that cannot be encoded is returned as an error.
func Emit(signalType string, payload any) (Reduction, error) {
	sig, err := signal.New(signalType, payload)
	if err != nil {
		return Reduction{}, err
	}
	return Accept(sig), nil
}

// Reject returns a reduction carrying a domain rejection.
func Reject(code, message string) Reduction {
	return Reduction{Rejection: &Rejection{Code: code, Message: message}}
}

// Rejectf is Reject with a formatted message.
func Rejectf(code, format string, args ...any) Reduction {
	return Reject(code, fmt.Sprintf(format, args...))
}

// Reducer applies an action to a scratch copy of a scope's state.
type Reducer interface {
	Reduce(scope action.Scope, scratch State, act action.Action) (Reduction, error)
}

// Func adapts a function to Reducer.
type Func func(scope action.Scope, scratch State, act action.Action) (Reduction, error)

// Reduce calls f.
func (f Func) Reduce(scope action.Scope, scratch State, act action.Action) (Reduction, error) {
	return f(scope, scratch, act)
}

// Scoped routes actions to a reducer per scope.
type Scoped map[action.Scope]Reducer

// Reduce dispatches to the reducer registered for scope.
func (s Scoped) Reduce(scope action.Scope, scratch State, act action.Action) (Reduction, error) {
	r, ok := s[scope]
	if !ok || r == nil {
		return Reduction{}, fmt.Errorf("%w: %s in scope %s", ErrUnknownAction, act.Type, scope)
	}
	return r.Reduce(scope, scratch, act)
}

// Unknown returns the error a reducer reports from its default branch.
func Unknown(act action.Action) error {
	return fmt.Errorf("%w: %s", ErrUnknownAction, act.Type)
}

// AssertState narrows a scratch state to the reducer's concrete type.
func AssertState[T State](s State) (T, error) {
	typed, ok := s.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", ErrStateType, s, zero)
	}
	return typed, nil
}

// Reduce applies act to a clone of state and returns the next state. On a
// rejection the original state is returned untouched.
func Reduce(r Reducer, scope action.Scope, state State, act action.Action) (State, Reduction, error) {
	if r == nil {
		return nil, Reduction{}, errors.New("reducer is required")
	}
	if state == nil {
		return nil, Reduction{}, errors.New("state is required")
	}
	scratch := state.Clone()
	result, err := r.Reduce(scope, scratch, act)
	if err != nil {
		return nil, Reduction{}, err
	}
	if result.Rejected() {
		return state, Reduction{Rejection: result.Rejection}, nil
	}
	return scratch, result, nil
}
