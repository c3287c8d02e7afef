// Package memory provides an in-process storage adapter for tests and
// single-run tooling.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

type outboxEntry struct {
	envelope  signal.Envelope
	status    string
	updatedAt time.Time
	seq       int
}

// Store is a mutex-guarded map implementation of storage.Store and
// storage.Outbox.
type Store struct {
	mu        sync.Mutex
	documents map[string]storage.DocumentRecord
	logs      map[string]map[action.Scope][]operation.Operation
	outbox    map[string]*outboxEntry
	seq       int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]storage.DocumentRecord),
		logs:      make(map[string]map[action.Scope][]operation.Operation),
		outbox:    make(map[string]*outboxEntry),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// CreateDocument stores a document header.
func (s *Store) CreateDocument(ctx context.Context, record storage.DocumentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[record.ID]; ok {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, record.ID)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	s.documents[record.ID] = record
	s.logs[record.ID] = make(map[action.Scope][]operation.Operation)
	return nil
}

// GetDocument returns a document header.
func (s *Store) GetDocument(ctx context.Context, id string) (storage.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DocumentRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.documents[id]
	if !ok {
		return storage.DocumentRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// ListDocuments returns every header ordered by creation time then id.
func (s *Store) ListDocuments(ctx context.Context) ([]storage.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	records := make([]storage.DocumentRecord, 0, len(s.documents))
	for _, record := range s.documents {
		records = append(records, record)
	}
	s.mu.Unlock()
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// AppendOperation stores op and its signal envelopes.
func (s *Store) AppendOperation(ctx context.Context, documentID string, op operation.Operation, signals []signal.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateAppend(documentID, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes, ok := s.logs[documentID]
	if !ok {
		return storage.ErrNotFound
	}
	current := scopes[op.Scope]
	if op.Index != len(current) {
		return storage.ConflictError(documentID, op.Scope, len(current), op.Index)
	}
	scopes[op.Scope] = append(current, op)
	for _, env := range signal.Wrap(documentID, op.Scope, op.Index, signals, op.Timestamp) {
		s.seq++
		s.outbox[env.ID] = &outboxEntry{
			envelope:  env,
			status:    storage.OutboxStatusPending,
			updatedAt: env.EnqueuedAt,
			seq:       s.seq,
		}
	}
	return nil
}

// ListOperations returns a copy of the document's operations.
func (s *Store) ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes, ok := s.logs[documentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make(map[action.Scope][]operation.Operation, len(scopes))
	for scope, ops := range scopes {
		out[scope] = append([]operation.Operation(nil), ops...)
	}
	return out, nil
}

// ClaimSignals leases due envelopes in enqueue order.
func (s *Store) ClaimSignals(ctx context.Context, now time.Time, limit int) ([]signal.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()
	staleBefore := now.Add(-storage.OutboxProcessingLease)

	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]*outboxEntry, 0)
	for _, entry := range s.outbox {
		switch entry.status {
		case storage.OutboxStatusPending, storage.OutboxStatusFailed:
			if !entry.envelope.NextAttempt.After(now) {
				due = append(due, entry)
			}
		case storage.OutboxStatusProcessing:
			if !entry.updatedAt.After(staleBefore) {
				due = append(due, entry)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].envelope.NextAttempt.Equal(due[j].envelope.NextAttempt) {
			return due[i].envelope.NextAttempt.Before(due[j].envelope.NextAttempt)
		}
		return due[i].seq < due[j].seq
	})
	if len(due) > limit {
		due = due[:limit]
	}
	claimed := make([]signal.Envelope, 0, len(due))
	for _, entry := range due {
		entry.status = storage.OutboxStatusProcessing
		entry.updatedAt = now
		claimed = append(claimed, entry.envelope)
	}
	return claimed, nil
}

// CompleteSignal removes a claimed envelope.
func (s *Store) CompleteSignal(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.outbox[id]
	if !ok || entry.status != storage.OutboxStatusProcessing {
		return fmt.Errorf("complete signal %s: %w", id, storage.ErrNotFound)
	}
	delete(s.outbox, id)
	return nil
}

// RetrySignal records a failed delivery of a claimed envelope.
func (s *Store) RetrySignal(ctx context.Context, id string, nextAttempt time.Time, lastErr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.outbox[id]
	if !ok || entry.status != storage.OutboxStatusProcessing {
		return fmt.Errorf("retry signal %s: %w", id, storage.ErrNotFound)
	}
	entry.envelope.Attempts++
	entry.envelope.NextAttempt = nextAttempt.UTC()
	entry.envelope.LastError = lastErr
	entry.status = storage.RetryStatus(entry.envelope.Attempts)
	entry.updatedAt = time.Now().UTC()
	return nil
}

// OutboxSummary counts envelopes by status.
func (s *Store) OutboxSummary(ctx context.Context) (storage.OutboxSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.OutboxSummary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var summary storage.OutboxSummary
	for _, entry := range s.outbox {
		summary.Add(entry.status, 1)
	}
	return summary, nil
}
