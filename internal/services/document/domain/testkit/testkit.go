// Package testkit provides a small entity document type for exercising the
// runtime in tests: entities keyed by id, a duplicate check on add and a
// not-found check on update.
package testkit

import (
	"sort"
	"strings"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

const (
	// TypeName is the document type name.
	TypeName = "testkit/entities"

	ActionAddEntity    action.Type = "ADD_ENTITY"
	ActionUpdateEntity action.Type = "UPDATE_ENTITY"
	ActionSetNote      action.Type = "SET_NOTE"

	// ErrCodeDuplicate is recorded when adding an entity whose id exists.
	ErrCodeDuplicate = "DUPLICATE_ENTITY"
	// ErrCodeNotFound is recorded when updating an entity that does not exist.
	ErrCodeNotFound = "ENTITY_NOT_FOUND"

	SignalEntityAdded = "testkit.entity_added"
)

// Entity is one keyed record.
type Entity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// State is the global state: entities ordered by insertion.
type State struct {
	Entities []Entity `json:"entities"`
}

// Clone implements reducer.State.
func (s *State) Clone() reducer.State {
	return &State{Entities: append([]Entity{}, s.Entities...)}
}

// Find returns the entity with entityID.
func (s *State) Find(entityID string) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == entityID {
			return e, true
		}
	}
	return Entity{}, false
}

// LocalState is the local scope state.
type LocalState struct {
	Notes map[string]string `json:"notes"`
}

// Clone implements reducer.State.
func (s *LocalState) Clone() reducer.State {
	cp := &LocalState{Notes: make(map[string]string, len(s.Notes))}
	for k, v := range s.Notes {
		cp.Notes[k] = v
	}
	return cp
}

// AddEntityInput adds an entity.
type AddEntityInput struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=64"`
}

// Normalize trims identifiers.
func (in AddEntityInput) Normalize() AddEntityInput {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// UpdateEntityInput renames an entity and bumps its counter.
type UpdateEntityInput struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=64"`
}

// SetNoteInput writes a local note.
type SetNoteInput struct {
	Key  string `json:"key" validate:"required"`
	Text string `json:"text"`
}

// NewType returns a fresh document type. Each call builds its own registry.
func NewType() *document.Type {
	actions := action.NewRegistry().MustRegister(
		action.Definition{Type: ActionAddEntity, Input: action.StructInput[AddEntityInput]()},
		action.Definition{Type: ActionUpdateEntity, Input: action.StructInput[UpdateEntityInput]()},
		action.Definition{Type: ActionSetNote, Scopes: []action.Scope{action.ScopeLocal}, Input: action.StructInput[SetNoteInput]()},
	)
	return &document.Type{
		Name:    TypeName,
		Actions: actions,
		Reducer: reducer.Scoped{
			action.ScopeGlobal: reducer.Func(reduceGlobal),
			action.ScopeLocal:  reducer.Func(reduceLocal),
		},
		Scopes: map[action.Scope]func() reducer.State{
			action.ScopeGlobal: func() reducer.State { return &State{Entities: []Entity{}} },
			action.ScopeLocal:  func() reducer.State { return &LocalState{Notes: map[string]string{}} },
		},
	}
}

func reduceGlobal(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	state, err := reducer.AssertState[*State](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}
	switch in := act.Payload().(type) {
	case AddEntityInput:
		if _, exists := state.Find(in.ID); exists {
			return reducer.Rejectf(ErrCodeDuplicate, "entity %s already exists", in.ID), nil
		}
		state.Entities = append(state.Entities, Entity{ID: in.ID, Name: in.Name})
		return reducer.Emit(SignalEntityAdded, map[string]string{"id": in.ID})
	case UpdateEntityInput:
		for i := range state.Entities {
			if state.Entities[i].ID == in.ID {
				state.Entities[i].Name = in.Name
				state.Entities[i].Count++
				return reducer.Accept(), nil
			}
		}
		return reducer.Rejectf(ErrCodeNotFound, "entity %s not found", in.ID), nil
	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}

func reduceLocal(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	state, err := reducer.AssertState[*LocalState](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}
	switch in := act.Payload().(type) {
	case SetNoteInput:
		if in.Text == "" {
			delete(state.Notes, in.Key)
		} else {
			state.Notes[in.Key] = in.Text
		}
		return reducer.Accept(), nil
	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}

// EntityIDs returns the sorted ids in a global state.
func EntityIDs(s reducer.State) []string {
	st, ok := s.(*State)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(st.Entities))
	for _, e := range st.Entities {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}
