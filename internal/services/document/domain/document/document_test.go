package document_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/testkit"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newDoc(t *testing.T) (*document.Type, *document.Document) {
	t.Helper()
	docType := testkit.NewType()
	doc, err := document.Create(docType, document.WithID("doc-1"), document.WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return docType, doc
}

func mustAction(t *testing.T, docType *document.Type, actionType action.Type, input any) action.Action {
	t.Helper()
	act, err := docType.Actions.Create(actionType, input, "")
	if err != nil {
		t.Fatalf("create %s: %v", actionType, err)
	}
	return act
}

func mustApply(t *testing.T, doc *document.Document, act action.Action) document.Result {
	t.Helper()
	result, err := doc.Apply(act)
	if err != nil {
		t.Fatalf("apply %s: %v", act.Type, err)
	}
	return result
}

func globalState(t *testing.T, doc *document.Document) *testkit.State {
	t.Helper()
	st, ok := doc.State(action.ScopeGlobal)
	if !ok {
		t.Fatal("expected global state")
	}
	return st.(*testkit.State)
}

func TestCreateStartsEmpty(t *testing.T) {
	_, doc := newDoc(t)
	header := doc.Header()
	if header.ID != "doc-1" || header.DocumentType != testkit.TypeName {
		t.Fatalf("unexpected header %+v", header)
	}
	if header.Revision[action.ScopeGlobal] != 0 || header.Revision[action.ScopeLocal] != 0 {
		t.Fatalf("expected zero revisions, got %v", header.Revision)
	}
	if len(globalState(t, doc).Entities) != 0 {
		t.Fatal("expected no entities")
	}
	if len(doc.Operations(action.ScopeGlobal)) != 0 {
		t.Fatal("expected empty log")
	}
}

func TestDuplicateAddIsRecordedAsRejection(t *testing.T) {
	docType, doc := newDoc(t)

	first := mustApply(t, doc, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "1", Name: "one"}))
	if first.Rejected() {
		t.Fatalf("unexpected rejection %+v", first.Operation.Error)
	}
	doc = first.Document
	if ids := testkit.EntityIDs(globalState(t, doc)); len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("expected entity 1, got %v", ids)
	}
	if len(doc.Operations(action.ScopeGlobal)) != 1 {
		t.Fatal("expected log length 1")
	}
	if len(first.Signals) != 1 || first.Signals[0].Type != testkit.SignalEntityAdded {
		t.Fatalf("expected entity_added signal, got %+v", first.Signals)
	}

	second := mustApply(t, doc, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "1", Name: "again"}))
	doc = second.Document
	ops := doc.Operations(action.ScopeGlobal)
	if len(ops) != 2 {
		t.Fatalf("expected log length 2, got %d", len(ops))
	}
	if ops[1].ErrorCode() != testkit.ErrCodeDuplicate {
		t.Fatalf("expected %s on operation 1, got %+v", testkit.ErrCodeDuplicate, ops[1].Error)
	}
	state := globalState(t, doc)
	if len(state.Entities) != 1 || state.Entities[0].Name != "one" {
		t.Fatalf("expected single untouched entity, got %+v", state.Entities)
	}
	if len(second.Signals) != 0 {
		t.Fatalf("rejected operation must not emit signals, got %+v", second.Signals)
	}
	if doc.Header().Revision[action.ScopeGlobal] != 2 {
		t.Fatalf("expected revision 2, got %d", doc.Header().Revision[action.ScopeGlobal])
	}
}

func TestUpdateMissingEntityIsRecordedAsRejection(t *testing.T) {
	docType, doc := newDoc(t)
	beforeHash, err := doc.StateHash(action.ScopeGlobal)
	if err != nil {
		t.Fatalf("state hash: %v", err)
	}

	result := mustApply(t, doc, mustAction(t, docType, testkit.ActionUpdateEntity, testkit.UpdateEntityInput{ID: "99", Name: "ghost"}))
	if result.Operation.ErrorCode() != testkit.ErrCodeNotFound {
		t.Fatalf("expected %s, got %+v", testkit.ErrCodeNotFound, result.Operation.Error)
	}
	if result.Operation.Index != 0 || len(result.Document.Operations(action.ScopeGlobal)) != 1 {
		t.Fatal("expected log to grow by one")
	}
	afterHash, err := result.Document.StateHash(action.ScopeGlobal)
	if err != nil {
		t.Fatalf("state hash: %v", err)
	}
	if beforeHash != afterHash || result.Operation.Hash != beforeHash {
		t.Fatalf("state changed on rejection: %s -> %s (op hash %s)", beforeHash, afterHash, result.Operation.Hash)
	}
}

func TestApplyIsCopyOnWrite(t *testing.T) {
	docType, doc := newDoc(t)
	result := mustApply(t, doc, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "a", Name: "A"}))

	if len(globalState(t, doc).Entities) != 0 {
		t.Fatal("prior handle observed the new entity")
	}
	if len(doc.Operations(action.ScopeGlobal)) != 0 {
		t.Fatal("prior handle observed the new operation")
	}
	if doc.Header().Revision[action.ScopeGlobal] != 0 {
		t.Fatal("prior handle revision changed")
	}

	// Branching from the same handle must not leak between branches.
	left := mustApply(t, result.Document, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "l", Name: "L"}))
	right := mustApply(t, result.Document, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "r", Name: "R"}))
	if ids := testkit.EntityIDs(globalState(t, left.Document)); len(ids) != 2 || ids[1] != "l" {
		t.Fatalf("left branch = %v", ids)
	}
	if ids := testkit.EntityIDs(globalState(t, right.Document)); len(ids) != 2 || ids[1] != "r" {
		t.Fatalf("right branch = %v", ids)
	}

	// Mutating a returned state copy must not reach the document.
	st := globalState(t, result.Document)
	st.Entities[0].Name = "mutated"
	if globalState(t, result.Document).Entities[0].Name != "A" {
		t.Fatal("document state mutated through State()")
	}
}

func TestScopesAreIndependent(t *testing.T) {
	docType, doc := newDoc(t)
	doc = mustApply(t, doc, mustAction(t, docType, testkit.ActionAddEntity, testkit.AddEntityInput{ID: "1", Name: "one"})).Document
	local := mustApply(t, doc, mustAction(t, docType, testkit.ActionSetNote, testkit.SetNoteInput{Key: "k", Text: "v"}))
	if local.Operation.Scope != action.ScopeLocal || local.Operation.Index != 0 {
		t.Fatalf("expected first local operation, got %+v", local.Operation)
	}
	header := local.Document.Header()
	if header.Revision[action.ScopeGlobal] != 1 || header.Revision[action.ScopeLocal] != 1 {
		t.Fatalf("unexpected revisions %v", header.Revision)
	}
}

func TestApplyValidatesUnvalidatedActions(t *testing.T) {
	_, doc := newDoc(t)

	_, err := doc.Apply(action.Action{
		Type:  testkit.ActionAddEntity,
		Scope: action.ScopeGlobal,
		Input: json.RawMessage(`{"id":"","name":"x","extra":1}`),
	})
	var verr *action.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(doc.Operations(action.ScopeGlobal)) != 0 {
		t.Fatal("invalid action reached the log")
	}

	result, err := doc.Apply(action.Action{
		ID:    "raw-1",
		Type:  testkit.ActionAddEntity,
		Scope: action.ScopeGlobal,
		Input: json.RawMessage(`{"name":" Raw ","id":" r1 "}`),
	})
	if err != nil {
		t.Fatalf("apply raw action: %v", err)
	}
	if string(result.Operation.Action.Input) != `{"id":"r1","name":"Raw"}` {
		t.Fatalf("expected normalized input, got %s", result.Operation.Action.Input)
	}
}
