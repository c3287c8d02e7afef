package action

import (
	"encoding/json"
	"errors"
)

var (
	// ErrTypeRequired indicates a missing action type.
	ErrTypeRequired = errors.New("action type is required")
	// ErrTypeUnknown indicates an action type outside the registered vocabulary.
	ErrTypeUnknown = errors.New("action type is not registered")
	// ErrScopeNotAllowed indicates an action targeting a scope its definition does not allow.
	ErrScopeNotAllowed = errors.New("action scope is not allowed")
)

// Type identifies an action within a document type's vocabulary.
type Type string

// Scope names an independent operation log of a document.
type Scope string

const (
	// ScopeGlobal is the shared, persisted document state.
	ScopeGlobal Scope = "global"
	// ScopeLocal is per-user state such as editor preferences.
	ScopeLocal Scope = "local"
)

// Action is a validated request to mutate a document.
type Action struct {
	ID    string          `json:"id,omitempty"`
	Type  Type            `json:"type"`
	Scope Scope           `json:"scope"`
	Input json.RawMessage `json:"input"`

	payload   any
	validated bool
}

// Payload returns the decoded, normalized input. It is nil for actions that
// did not pass through a Registry in this process.
func (a Action) Payload() any {
	return a.payload
}

// Validated reports whether the action passed its input validator.
func (a Action) Validated() bool {
	return a.validated
}

// Equal reports whether two actions carry the same identity and input bytes.
func (a Action) Equal(other Action) bool {
	return a.ID == other.ID &&
		a.Type == other.Type &&
		a.Scope == other.Scope &&
		string(a.Input) == string(other.Input)
}
