// Package storagetest holds the behavior suite every storage adapter runs.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

// Journal is a store that also exposes its signal outbox.
type Journal interface {
	storage.Store
	storage.Outbox
}

// Opener returns a fresh, empty journal. Cleanup is the opener's job.
type Opener func(t *testing.T) Journal

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the full adapter suite.
func Run(t *testing.T, open Opener) {
	t.Run("documents", func(t *testing.T) { testDocuments(t, open(t)) })
	t.Run("append and list", func(t *testing.T) { testAppendAndList(t, open(t)) })
	t.Run("append conflicts", func(t *testing.T) { testAppendConflicts(t, open(t)) })
	t.Run("outbox lifecycle", func(t *testing.T) { testOutboxLifecycle(t, open(t)) })
	t.Run("outbox lease", func(t *testing.T) { testOutboxLease(t, open(t)) })
	t.Run("outbox dead letter", func(t *testing.T) { testOutboxDeadLetter(t, open(t)) })
}

// Record returns a document header for tests.
func Record(id string) storage.DocumentRecord {
	return storage.DocumentRecord{ID: id, DocumentType: "testkit/entities", CreatedAt: baseTime}
}

// Op builds a stored operation with a deterministic action.
func Op(scope action.Scope, index int, errCode string) operation.Operation {
	op := operation.Operation{
		Index:     index,
		Scope:     scope,
		Timestamp: baseTime.Add(time.Duration(index) * time.Second),
		Hash:      "hash-" + string(scope) + "-" + string(rune('a'+index)),
		Action: action.Action{
			ID:    "act-" + string(scope) + "-" + string(rune('a'+index)),
			Type:  "ADD_ENTITY",
			Scope: scope,
			Input: json.RawMessage(`{"id":"e1","name":"One"}`),
		},
	}
	if errCode != "" {
		op.Error = &operation.Error{Code: errCode, Message: "rejected " + errCode}
	}
	return op
}

func testDocuments(t *testing.T, store Journal) {
	ctx := context.Background()
	second := Record("doc-b")
	second.CreatedAt = baseTime.Add(time.Minute)
	for _, rec := range []storage.DocumentRecord{second, Record("doc-a")} {
		if err := store.CreateDocument(ctx, rec); err != nil {
			t.Fatalf("create %s: %v", rec.ID, err)
		}
	}
	if err := store.CreateDocument(ctx, Record("doc-a")); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := store.CreateDocument(ctx, storage.DocumentRecord{ID: "x"}); err == nil {
		t.Fatal("expected invalid record error")
	}

	got, err := store.GetDocument(ctx, "doc-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DocumentType != "testkit/entities" || !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "doc-a" || list[1].ID != "doc-b" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func testAppendAndList(t *testing.T, store Journal) {
	ctx := context.Background()
	if err := store.CreateDocument(ctx, Record("doc")); err != nil {
		t.Fatalf("create: %v", err)
	}
	want := []operation.Operation{
		Op(action.ScopeGlobal, 0, ""),
		Op(action.ScopeLocal, 0, ""),
		Op(action.ScopeGlobal, 1, "DUPLICATE_ENTITY"),
	}
	for _, op := range want {
		if err := store.AppendOperation(ctx, "doc", op, nil); err != nil {
			t.Fatalf("append %s/%d: %v", op.Scope, op.Index, err)
		}
	}

	logs, err := store.ListOperations(ctx, "doc")
	if err != nil {
		t.Fatalf("list operations: %v", err)
	}
	if len(logs[action.ScopeGlobal]) != 2 || len(logs[action.ScopeLocal]) != 1 {
		t.Fatalf("unexpected log sizes: %d global, %d local", len(logs[action.ScopeGlobal]), len(logs[action.ScopeLocal]))
	}
	AssertOperation(t, logs[action.ScopeGlobal][0], want[0])
	AssertOperation(t, logs[action.ScopeGlobal][1], want[2])
	AssertOperation(t, logs[action.ScopeLocal][0], want[1])

	if _, err := operation.NewLog(logs); err != nil {
		t.Fatalf("stored log does not rebuild: %v", err)
	}
	if _, err := store.ListOperations(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testAppendConflicts(t *testing.T, store Journal) {
	ctx := context.Background()
	if err := store.CreateDocument(ctx, Record("doc")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.AppendOperation(ctx, "doc", Op(action.ScopeGlobal, 0, ""), nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	sig := []signal.Signal{signal.MustNew("testkit.entity_added", map[string]string{"id": "e1"})}
	for _, index := range []int{0, 2} {
		if err := store.AppendOperation(ctx, "doc", Op(action.ScopeGlobal, index, ""), sig); !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("index %d: expected ErrConflict, got %v", index, err)
		}
	}
	if err := store.AppendOperation(ctx, "missing", Op(action.ScopeGlobal, 0, ""), nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	summary, err := store.OutboxSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary != (storage.OutboxSummary{}) {
		t.Fatalf("conflicting appends must not enqueue signals: %+v", summary)
	}
}

func appendWithSignals(t *testing.T, store Journal, n int) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateDocument(ctx, Record("doc")); err != nil {
		t.Fatalf("create: %v", err)
	}
	signals := make([]signal.Signal, 0, n)
	for i := 0; i < n; i++ {
		signals = append(signals, signal.MustNew("testkit.entity_added", map[string]int{"n": i}))
	}
	if err := store.AppendOperation(ctx, "doc", Op(action.ScopeGlobal, 0, ""), signals); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func testOutboxLifecycle(t *testing.T, store Journal) {
	ctx := context.Background()
	appendWithSignals(t, store, 2)
	now := baseTime.Add(time.Hour)

	claimed, err := store.ClaimSignals(ctx, now, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("claimed %d envelopes, want 2", len(claimed))
	}
	first := claimed[0]
	if first.DocumentID != "doc" || first.Scope != action.ScopeGlobal || first.Index != 0 || first.Position != 0 {
		t.Fatalf("unexpected envelope %+v", first)
	}
	if first.ID != first.Key() || first.Signal.Type != "testkit.entity_added" || string(first.Signal.Payload) != `{"n":0}` {
		t.Fatalf("unexpected envelope contents %+v", first)
	}
	if claimed[1].Position != 1 {
		t.Fatalf("envelopes out of order: %+v", claimed)
	}

	again, err := store.ClaimSignals(ctx, now, 10)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased envelopes were claimed twice: %+v", again)
	}

	if err := store.CompleteSignal(ctx, claimed[1].ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.RetrySignal(ctx, first.ID, now.Add(time.Second), "redis down"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := store.CompleteSignal(ctx, claimed[1].ID); err == nil {
		t.Fatal("completing twice must fail")
	}

	summary, err := store.OutboxSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary != (storage.OutboxSummary{Failed: 1}) {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if early, _ := store.ClaimSignals(ctx, now, 10); len(early) != 0 {
		t.Fatalf("retry claimed before its next attempt: %+v", early)
	}
	retried, err := store.ClaimSignals(ctx, now.Add(2*time.Second), 10)
	if err != nil {
		t.Fatalf("claim retried: %v", err)
	}
	if len(retried) != 1 || retried[0].ID != first.ID || retried[0].Attempts != 1 || retried[0].LastError != "redis down" {
		t.Fatalf("unexpected retried envelope %+v", retried)
	}
}

func testOutboxLease(t *testing.T, store Journal) {
	ctx := context.Background()
	appendWithSignals(t, store, 1)
	now := baseTime.Add(time.Hour)

	if claimed, err := store.ClaimSignals(ctx, now, 1); err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d)", err, len(claimed))
	}
	if claimed, _ := store.ClaimSignals(ctx, now.Add(storage.OutboxProcessingLease/2), 1); len(claimed) != 0 {
		t.Fatal("lease expired early")
	}
	reclaimed, err := store.ClaimSignals(ctx, now.Add(storage.OutboxProcessingLease), 1)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatal("abandoned lease was not reclaimed")
	}
}

func testOutboxDeadLetter(t *testing.T, store Journal) {
	ctx := context.Background()
	appendWithSignals(t, store, 1)
	now := baseTime.Add(time.Hour)

	for attempt := 1; attempt <= storage.OutboxDeadLetterThreshold; attempt++ {
		claimed, err := store.ClaimSignals(ctx, now, 1)
		if err != nil {
			t.Fatalf("claim attempt %d: %v", attempt, err)
		}
		if len(claimed) != 1 {
			t.Fatalf("attempt %d: expected a due envelope", attempt)
		}
		if err := store.RetrySignal(ctx, claimed[0].ID, now, "boom"); err != nil {
			t.Fatalf("retry attempt %d: %v", attempt, err)
		}
	}
	if claimed, _ := store.ClaimSignals(ctx, now.Add(time.Hour), 1); len(claimed) != 0 {
		t.Fatal("dead envelope was claimed")
	}
	summary, err := store.OutboxSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Dead != 1 {
		t.Fatalf("expected one dead envelope, got %+v", summary)
	}
}

// AssertOperation compares a stored operation with the one appended.
func AssertOperation(t *testing.T, got, want operation.Operation) {
	t.Helper()
	if got.Index != want.Index || got.Scope != want.Scope || got.Hash != want.Hash {
		t.Fatalf("operation = %+v, want %+v", got, want)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp = %s, want %s", got.Timestamp, want.Timestamp)
	}
	if !got.Action.Equal(want.Action) {
		t.Fatalf("action = %+v, want %+v", got.Action, want.Action)
	}
	if (got.Error == nil) != (want.Error == nil) {
		t.Fatalf("error = %+v, want %+v", got.Error, want.Error)
	}
	if got.Error != nil && *got.Error != *want.Error {
		t.Fatalf("error = %+v, want %+v", *got.Error, *want.Error)
	}
}
