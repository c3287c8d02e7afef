package reducer

import (
	"errors"
	"math"
	"testing"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
)

type counter struct {
	Value int
}

func (c *counter) Clone() State {
	cp := *c
	return &cp
}

var counterReducer = Func(func(_ action.Scope, scratch State, act action.Action) (Reduction, error) {
	state, err := AssertState[*counter](scratch)
	if err != nil {
		return Reduction{}, err
	}
	switch act.Type {
	case "INCREMENT":
		state.Value++
		return Accept(signal.MustNew("counter.incremented", map[string]int{"value": state.Value})), nil
	case "FAIL_AFTER_WRITE":
		state.Value = 99
		return Reject("LIMIT", "counter is locked"), nil
	default:
		return Reduction{}, Unknown(act)
	}
})

func TestReduceAcceptReturnsNewState(t *testing.T) {
	original := &counter{Value: 1}
	next, result, err := Reduce(counterReducer, action.ScopeGlobal, original, action.Action{Type: "INCREMENT"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if original.Value != 1 {
		t.Fatalf("original state mutated: %d", original.Value)
	}
	if next.(*counter).Value != 2 {
		t.Fatalf("expected value 2, got %d", next.(*counter).Value)
	}
	if len(result.Signals) != 1 || result.Signals[0].Type != "counter.incremented" {
		t.Fatalf("unexpected signals %+v", result.Signals)
	}
}

func TestReduceRejectionKeepsOriginalState(t *testing.T) {
	original := &counter{Value: 1}
	next, result, err := Reduce(counterReducer, action.ScopeGlobal, original, action.Action{Type: "FAIL_AFTER_WRITE"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if next != State(original) {
		t.Fatal("expected original state on rejection")
	}
	if original.Value != 1 {
		t.Fatalf("original state mutated: %d", original.Value)
	}
	if !result.Rejected() || result.Rejection.Code != "LIMIT" {
		t.Fatalf("expected LIMIT rejection, got %+v", result)
	}
}

func TestReduceUnknownActionIsFatal(t *testing.T) {
	_, _, err := Reduce(counterReducer, action.ScopeGlobal, &counter{}, action.Action{Type: "NOPE"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestScopedRoutesByScope(t *testing.T) {
	scoped := Scoped{action.ScopeGlobal: counterReducer}
	if _, err := scoped.Reduce(action.ScopeGlobal, &counter{}, action.Action{Type: "INCREMENT"}); err != nil {
		t.Fatalf("reduce global: %v", err)
	}
	if _, err := scoped.Reduce(action.ScopeLocal, &counter{}, action.Action{Type: "INCREMENT"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction for local scope, got %v", err)
	}
}

type other struct{}

func (o *other) Clone() State { return &other{} }

func TestAssertStateWrongType(t *testing.T) {
	if _, err := AssertState[*counter](&other{}); !errors.Is(err, ErrStateType) {
		t.Fatalf("expected ErrStateType, got %v", err)
	}
}

func TestEmitReturnsEncodingError(t *testing.T) {
	red, err := Emit("counter.total", map[string]float64{"total": math.Inf(1)})
	if err == nil {
		t.Fatal("expected encoding error for non-finite payload")
	}
	if len(red.Signals) != 0 {
		t.Fatalf("expected no signals, got %+v", red.Signals)
	}

	red, err = Emit("counter.total", map[string]float64{"total": 3})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(red.Signals) != 1 || red.Signals[0].Type != "counter.total" {
		t.Fatalf("unexpected signals %+v", red.Signals)
	}
}
