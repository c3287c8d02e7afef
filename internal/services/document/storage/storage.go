package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/powerhouse-inc/contributor-billing/internal/platform/errors"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
)

// ErrNotFound indicates a requested document is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAlreadyExists indicates a document id is already taken.
var ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyExists, "document already exists")

// ErrConflict indicates an append whose index is not the scope's current
// length, usually because another writer appended first.
var ErrConflict = apperrors.New(apperrors.CodeConflict, "operation index conflict")

const (
	// OutboxDeadLetterThreshold is the attempt count after which a signal is
	// parked as dead instead of retried.
	OutboxDeadLetterThreshold = 8
	// OutboxProcessingLease is how long a claimed signal stays invisible to
	// other relays before it is considered abandoned.
	OutboxProcessingLease = 2 * time.Minute
)

// Outbox statuses shared by every adapter.
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusFailed     = "failed"
	OutboxStatusDead       = "dead"
)

// DocumentRecord is the header row of a stored document.
type DocumentRecord struct {
	ID           string
	DocumentType string
	CreatedAt    time.Time
}

// DocumentStore persists document headers.
type DocumentStore interface {
	CreateDocument(ctx context.Context, record DocumentRecord) error
	GetDocument(ctx context.Context, id string) (DocumentRecord, error)
	ListDocuments(ctx context.Context) ([]DocumentRecord, error)
}

// OperationStore persists scoped operation logs.
type OperationStore interface {
	// AppendOperation stores op and enqueues its signals atomically. It
	// returns ErrConflict when op.Index is not the scope's current length.
	AppendOperation(ctx context.Context, documentID string, op operation.Operation, signals []signal.Signal) error
	// ListOperations returns every stored operation grouped by scope, ordered
	// by index.
	ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error)
}

// Store is a complete document journal.
type Store interface {
	DocumentStore
	OperationStore
	Close() error
}

// Outbox hands queued signal envelopes to a relay.
type Outbox interface {
	// ClaimSignals leases up to limit due envelopes.
	ClaimSignals(ctx context.Context, now time.Time, limit int) ([]signal.Envelope, error)
	// CompleteSignal removes a delivered envelope.
	CompleteSignal(ctx context.Context, id string) error
	// RetrySignal records a failed delivery and schedules the next attempt.
	RetrySignal(ctx context.Context, id string, nextAttempt time.Time, lastErr string) error
	// OutboxSummary reports queue depth by status.
	OutboxSummary(ctx context.Context) (OutboxSummary, error)
}

// OutboxSummary reports outbox depth by status.
type OutboxSummary struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
}

// Add counts one envelope in status.
func (s *OutboxSummary) Add(status string, n int) {
	switch status {
	case OutboxStatusPending:
		s.Pending += n
	case OutboxStatusProcessing:
		s.Processing += n
	case OutboxStatusFailed:
		s.Failed += n
	case OutboxStatusDead:
		s.Dead += n
	}
}

// RetryStatus returns the status a failed envelope moves to after attempt.
func RetryStatus(attempt int) string {
	if attempt >= OutboxDeadLetterThreshold {
		return OutboxStatusDead
	}
	return OutboxStatusFailed
}

// RetryBackoff doubles from one second per attempt, capped at five minutes.
func RetryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 20 {
		return 5 * time.Minute
	}
	backoff := time.Second << (attempt - 1)
	if backoff > 5*time.Minute {
		return 5 * time.Minute
	}
	return backoff
}

// ValidateRecord checks a document header before it is stored.
func ValidateRecord(record DocumentRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(record.DocumentType) == "" {
		return fmt.Errorf("document type is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("document created at is required")
	}
	return nil
}

// ValidateAppend checks an operation before it is appended.
func ValidateAppend(documentID string, op operation.Operation) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(string(op.Scope)) == "" {
		return fmt.Errorf("operation scope is required")
	}
	if op.Index < 0 {
		return fmt.Errorf("operation index must not be negative")
	}
	if strings.TrimSpace(string(op.Action.Type)) == "" {
		return fmt.Errorf("operation action type is required")
	}
	if strings.TrimSpace(op.Hash) == "" {
		return fmt.Errorf("operation hash is required")
	}
	return nil
}

// ConflictError wraps ErrConflict with the indexes involved.
func ConflictError(documentID string, scope action.Scope, want, got int) error {
	return fmt.Errorf("%w: document %s scope %s expects index %d, got %d", ErrConflict, documentID, scope, want, got)
}
