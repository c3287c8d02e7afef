package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/powerhouse-inc/contributor-billing/internal/platform/id"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/encoding"
)

// Definition registers one action type of a document type's vocabulary.
type Definition struct {
	Type Type
	// Scopes lists the scopes the action may target. The first entry is the
	// default for actions created without an explicit scope.
	Scopes []Scope
	Input  Validator
}

func (d Definition) allows(scope Scope) bool {
	for _, s := range d.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Registry holds the closed action vocabulary of one document type.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds an action definition.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if def.Input == nil {
		return fmt.Errorf("action %s: input validator is required", def.Type)
	}
	if len(def.Scopes) == 0 {
		def.Scopes = []Scope{ScopeGlobal}
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("action type already registered: %s", def.Type)
	}
	def.Scopes = append([]Scope(nil), def.Scopes...)
	r.definitions[def.Type] = def
	return nil
}

// MustRegister registers definitions and panics on the first error.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Definition returns the definition for an action type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[t]
	return def, ok
}

// ListDefinitions returns all definitions ordered by type.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil {
		return nil
	}
	defs := make([]Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Type < defs[j].Type
	})
	return defs
}

// Option customizes action creation.
type Option func(*Action)

// WithID sets the action correlation id instead of generating one.
func WithID(actionID string) Option {
	return func(a *Action) {
		a.ID = actionID
	}
}

// Create validates and normalizes input and returns a ready-to-apply action.
// Input may be a typed value, a map, or raw JSON bytes. An empty scope selects
// the definition's default scope.
func (r *Registry) Create(t Type, input any, scope Scope, opts ...Option) (Action, error) {
	raw, err := rawInput(input)
	if err != nil {
		return Action{}, &ValidationError{Type: t, Fields: []FieldError{{Rule: "json", Message: err.Error()}}}
	}
	act := Action{Type: t, Scope: scope, Input: raw}
	for _, opt := range opts {
		opt(&act)
	}
	return r.validate(act, true)
}

// Restore re-validates a persisted action and attaches its decoded payload.
// The action id and scope are kept as recorded.
func (r *Registry) Restore(act Action) (Action, error) {
	return r.validate(act, false)
}

func (r *Registry) validate(act Action, fresh bool) (Action, error) {
	act.Type = Type(strings.TrimSpace(string(act.Type)))
	if act.Type == "" {
		return Action{}, ErrTypeRequired
	}
	def, ok := r.Definition(act.Type)
	if !ok {
		return Action{}, fmt.Errorf("%w: %s", ErrTypeUnknown, act.Type)
	}
	if act.Scope == "" && fresh {
		act.Scope = def.Scopes[0]
	}
	if !def.allows(act.Scope) {
		return Action{}, fmt.Errorf("%w: %s does not target %q", ErrScopeNotAllowed, act.Type, act.Scope)
	}

	if len(act.Input) == 0 {
		act.Input = json.RawMessage("{}")
	}
	normalized, err := encoding.NormalizeJSON(act.Input)
	if err != nil {
		return Action{}, &ValidationError{Type: act.Type, Fields: []FieldError{{Rule: "json", Message: err.Error()}}}
	}
	payload, violations := def.Input.Validate(normalized)
	if len(violations) > 0 {
		return Action{}, &ValidationError{Type: act.Type, Fields: violations}
	}
	if payload != nil {
		// Persist the normalized form so replay sees exactly what the reducer saw.
		normalized, err = encoding.CanonicalJSON(payload)
		if err != nil {
			return Action{}, fmt.Errorf("encode %s input: %w", act.Type, err)
		}
	}

	if act.ID == "" && fresh {
		act.ID, err = id.NewID()
		if err != nil {
			return Action{}, fmt.Errorf("generate action id: %w", err)
		}
	}
	act.Input = normalized
	act.payload = payload
	act.validated = true
	return act, nil
}

func rawInput(input any) (json.RawMessage, error) {
	switch v := input.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		return append(json.RawMessage(nil), v...), nil
	case string:
		return json.RawMessage(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal input: %w", err)
		}
		return data, nil
	}
}
