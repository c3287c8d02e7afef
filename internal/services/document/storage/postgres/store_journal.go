package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

// CreateDocument stores a document header.
func (s *Store) CreateDocument(ctx context.Context, record storage.DocumentRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, document_type, created_at) VALUES ($1, $2, $3)",
		record.ID, record.DocumentType, record.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, record.ID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document header.
func (s *Store) GetDocument(ctx context.Context, id string) (storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DocumentRecord{}, err
	}
	var record storage.DocumentRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, document_type, created_at FROM documents WHERE id = $1", id,
	).Scan(&record.ID, &record.DocumentType, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DocumentRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.DocumentRecord{}, fmt.Errorf("failed to get document: %w", err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// ListDocuments returns every header ordered by creation time then id.
func (s *Store) ListDocuments(ctx context.Context) ([]storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_type, created_at FROM documents ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	records := make([]storage.DocumentRecord, 0)
	for rows.Next() {
		var record storage.DocumentRecord
		if err := rows.Scan(&record.ID, &record.DocumentType, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return records, nil
}

// AppendOperation inserts op and its envelopes in one transaction. The
// document row is locked so concurrent writers to the same document queue up.
func (s *Store) AppendOperation(ctx context.Context, documentID string, op operation.Operation, signals []signal.Signal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateAppend(documentID, op); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE id = $1 FOR UPDATE", documentID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}

	var length int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM operations WHERE document_id = $1 AND scope = $2",
		documentID, string(op.Scope),
	).Scan(&length); err != nil {
		return fmt.Errorf("failed to count operations: %w", err)
	}
	if op.Index != length {
		return storage.ConflictError(documentID, op.Scope, length, op.Index)
	}

	var errCode, errMessage sql.NullString
	if op.Error != nil {
		errCode = sql.NullString{String: op.Error.Code, Valid: true}
		errMessage = sql.NullString{String: op.Error.Message, Valid: true}
	}
	query := `
		INSERT INTO operations (document_id, scope, idx, action_id, action_type, input, recorded_at, hash, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.ExecContext(ctx, query,
		documentID, string(op.Scope), op.Index, op.Action.ID, string(op.Action.Type),
		string(op.Action.Input), op.Timestamp.UTC(), op.Hash, errCode, errMessage,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ConflictError(documentID, op.Scope, length, op.Index)
		}
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	for _, env := range signal.Wrap(documentID, op.Scope, op.Index, signals, op.Timestamp) {
		query := `
		INSERT INTO signal_outbox (id, document_id, scope, idx, position, signal_type, payload, status, attempt_count, next_attempt_at, last_error, enqueued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8, '', $9, $9)
		ON CONFLICT (id) DO NOTHING
	`
		if _, err := tx.ExecContext(ctx, query,
			env.ID, env.DocumentID, string(env.Scope), env.Index, env.Position,
			env.Signal.Type, string(env.Signal.Payload), env.NextAttempt, env.EnqueuedAt,
		); err != nil {
			return fmt.Errorf("failed to enqueue signal %s: %w", env.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// ListOperations returns the document's operations grouped by scope.
func (s *Store) ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT scope, idx, action_id, action_type, input, recorded_at, hash, error_code, error_message FROM operations WHERE document_id = $1 ORDER BY scope, idx",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	logs := make(map[action.Scope][]operation.Operation)
	for rows.Next() {
		var (
			op         operation.Operation
			scope      string
			actionType string
			input      []byte
			recordedAt time.Time
			errCode    sql.NullString
			errMessage sql.NullString
		)
		if err := rows.Scan(&scope, &op.Index, &op.Action.ID, &actionType, &input, &recordedAt, &op.Hash, &errCode, &errMessage); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Scope = action.Scope(scope)
		op.Timestamp = recordedAt.UTC()
		op.Action.Type = action.Type(actionType)
		op.Action.Scope = op.Scope
		op.Action.Input = json.RawMessage(input)
		if errCode.Valid {
			op.Error = &operation.Error{Code: errCode.String, Message: errMessage.String}
		}
		logs[op.Scope] = append(logs[op.Scope], op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return logs, nil
}
