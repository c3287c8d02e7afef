package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/encoding"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// Type is the configuration a document type supplies to the runtime: its
// closed action vocabulary, its reducer and a default state per scope.
type Type struct {
	Name    string
	Actions *action.Registry
	Reducer reducer.Reducer
	Scopes  map[action.Scope]func() reducer.State
}

// Validate checks that the type is complete and self-consistent.
func (t *Type) Validate() error {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return ErrTypeRequired
	}
	if t.Actions == nil {
		return fmt.Errorf("document type %s: action registry is required", t.Name)
	}
	if t.Reducer == nil {
		return fmt.Errorf("document type %s: reducer is required", t.Name)
	}
	if len(t.Scopes) == 0 {
		return fmt.Errorf("document type %s: at least one scope is required", t.Name)
	}
	for scope, initial := range t.Scopes {
		if initial == nil || initial() == nil {
			return fmt.Errorf("document type %s: scope %s has no initial state", t.Name, scope)
		}
	}
	for _, def := range t.Actions.ListDefinitions() {
		for _, scope := range def.Scopes {
			if _, ok := t.Scopes[scope]; !ok {
				return fmt.Errorf("document type %s: action %s targets %w: %s", t.Name, def.Type, ErrScopeUnknown, scope)
			}
		}
	}
	return nil
}

// ScopeNames returns the type's scopes, sorted.
func (t *Type) ScopeNames() []action.Scope {
	scopes := make([]action.Scope, 0, len(t.Scopes))
	for scope := range t.Scopes {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes
}

// InitialState returns a fresh default state for scope.
func (t *Type) InitialState(scope action.Scope) (reducer.State, error) {
	initial, ok := t.Scopes[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScopeUnknown, scope)
	}
	return initial(), nil
}

// Replay folds ops over initial in index order. Every operation is checked
// against its recorded hash and error code; the first divergence is returned
// as an *IntegrityError.
func (t *Type) Replay(scope action.Scope, ops []operation.Operation, initial reducer.State) (reducer.State, error) {
	if _, ok := t.Scopes[scope]; !ok {
		return nil, integrityf(scope, 0, ErrScopeUnknown, "scope is not defined for %s", t.Name)
	}
	state := initial
	for i, op := range ops {
		if op.Index != i {
			return nil, integrityf(scope, i, nil, "operation index gap: expected %d got %d", i, op.Index)
		}
		if op.Scope != scope {
			return nil, integrityf(scope, i, nil, "operation recorded for scope %s", op.Scope)
		}
		next, result, err := t.reduce(scope, state, op.Action, i)
		if err != nil {
			return nil, err
		}
		if code := rejectionCode(result); code != op.ErrorCode() {
			return nil, integrityf(scope, i, nil, "error mismatch: recorded %q, replayed %q", op.ErrorCode(), code)
		}
		hash, err := encoding.ContentHash(next)
		if err != nil {
			return nil, fmt.Errorf("hash %s state at %d: %w", scope, i, err)
		}
		if hash != op.Hash {
			return nil, integrityf(scope, i, nil, "hash mismatch: recorded %s, replayed %s", op.Hash, hash)
		}
		state = next
	}
	return state, nil
}

// Verify replays every scope of log from its default state.
func (t *Type) Verify(log operation.Log) error {
	for _, scope := range log.Scopes() {
		initial, err := t.InitialState(scope)
		if err != nil {
			return integrityf(scope, 0, err, "log contains undefined scope")
		}
		if _, err := t.Replay(scope, log.Operations(scope), initial); err != nil {
			return err
		}
	}
	return nil
}

// reduce restores a persisted action and runs it through the reducer,
// translating unknown actions into integrity failures.
func (t *Type) reduce(scope action.Scope, state reducer.State, act action.Action, index int) (reducer.State, reducer.Reduction, error) {
	if !act.Validated() {
		restored, err := t.Actions.Restore(act)
		if err != nil {
			if errors.Is(err, action.ErrTypeUnknown) {
				return nil, reducer.Reduction{}, integrityf(scope, index, err, "unknown action type %s", act.Type)
			}
			return nil, reducer.Reduction{}, integrityf(scope, index, err, "recorded action %s no longer validates", act.Type)
		}
		act = restored
	}
	next, result, err := reducer.Reduce(t.Reducer, scope, state, act)
	if err != nil {
		if errors.Is(err, reducer.ErrUnknownAction) || errors.Is(err, reducer.ErrStateType) {
			return nil, reducer.Reduction{}, integrityf(scope, index, err, "reducer cannot apply %s", act.Type)
		}
		return nil, reducer.Reduction{}, fmt.Errorf("reduce %s: %w", act.Type, err)
	}
	return next, result, nil
}

func rejectionCode(r reducer.Reduction) string {
	if r.Rejection == nil {
		return ""
	}
	return r.Rejection.Code
}
