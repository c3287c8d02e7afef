package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (id, document_type, created_at) VALUES (?, ?, ?)`,
		record.ID, record.DocumentType, toMillis(record.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, record.ID)
		}
		return fmt.Errorf("insert document %s: %w", record.ID, err)
	}
	return nil
}

// GetDocument returns a document header.
func (s *Store) GetDocument(ctx context.Context, id string) (storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DocumentRecord{}, err
	}
	var (
		record    storage.DocumentRecord
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, document_type, created_at FROM documents WHERE id = ?`, id,
	).Scan(&record.ID, &record.DocumentType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DocumentRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.DocumentRecord{}, fmt.Errorf("get document %s: %w", id, err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// ListDocuments returns every header ordered by creation time then id.
func (s *Store) ListDocuments(ctx context.Context) ([]storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, document_type, created_at FROM documents ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	records := make([]storage.DocumentRecord, 0)
	for rows.Next() {
		var (
			record    storage.DocumentRecord
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.DocumentType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

// AppendOperation inserts op and its signal envelopes in one transaction.
func (s *Store) AppendOperation(ctx context.Context, documentID string, op operation.Operation, signals []signal.Signal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateAppend(documentID, op); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check document %s: %w", documentID, err)
	}

	var length int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE document_id = ? AND scope = ?`,
		documentID, string(op.Scope),
	).Scan(&length); err != nil {
		return fmt.Errorf("count operations %s/%s: %w", documentID, op.Scope, err)
	}
	if op.Index != length {
		return storage.ConflictError(documentID, op.Scope, length, op.Index)
	}

	var errCode, errMessage sql.NullString
	if op.Error != nil {
		errCode = sql.NullString{String: op.Error.Code, Valid: true}
		errMessage = sql.NullString{String: op.Error.Message, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO operations (
    document_id, scope, idx, action_id, action_type, input, recorded_at, hash, error_code, error_message
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		documentID,
		string(op.Scope),
		op.Index,
		op.Action.ID,
		string(op.Action.Type),
		string(op.Action.Input),
		toMillis(op.Timestamp),
		op.Hash,
		errCode,
		errMessage,
	); err != nil {
		if isConstraintError(err) {
			return storage.ConflictError(documentID, op.Scope, length, op.Index)
		}
		return fmt.Errorf("insert operation %s/%s/%d: %w", documentID, op.Scope, op.Index, err)
	}

	if err := enqueueSignals(ctx, tx, signal.Wrap(documentID, op.Scope, op.Index, signals, op.Timestamp)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isSQLiteBusyError(err) {
			return storage.ConflictError(documentID, op.Scope, length, op.Index)
		}
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// ListOperations returns the document's operations grouped by scope.
func (s *Store) ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT scope, idx, action_id, action_type, input, recorded_at, hash, error_code, error_message
		 FROM operations
		 WHERE document_id = ?
		 ORDER BY scope, idx`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list operations %s: %w", documentID, err)
	}
	defer rows.Close()

	logs := make(map[action.Scope][]operation.Operation)
	for rows.Next() {
		var (
			op         operation.Operation
			scope      string
			actionType string
			input      string
			recordedAt int64
			errCode    sql.NullString
			errMessage sql.NullString
		)
		if err := rows.Scan(&scope, &op.Index, &op.Action.ID, &actionType, &input, &recordedAt, &op.Hash, &errCode, &errMessage); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Scope = action.Scope(scope)
		op.Timestamp = fromMillis(recordedAt)
		op.Action.Type = action.Type(actionType)
		op.Action.Scope = op.Scope
		op.Action.Input = json.RawMessage(input)
		if errCode.Valid {
			op.Error = &operation.Error{Code: errCode.String, Message: errMessage.String}
		}
		logs[op.Scope] = append(logs[op.Scope], op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return logs, nil
}

func enqueueSignals(ctx context.Context, tx *sql.Tx, envelopes []signal.Envelope) error {
	for _, env := range envelopes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO signal_outbox (
    id, document_id, scope, idx, position, signal_type, payload, status, attempt_count, next_attempt_at, last_error, enqueued_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?, '', ?, ?)
ON CONFLICT(id) DO NOTHING`,
			env.ID,
			env.DocumentID,
			string(env.Scope),
			env.Index,
			env.Position,
			env.Signal.Type,
			string(env.Signal.Payload),
			toMillis(env.NextAttempt),
			toMillis(env.EnqueuedAt),
			toMillis(env.EnqueuedAt),
		); err != nil {
			return fmt.Errorf("enqueue signal %s: %w", env.ID, err)
		}
	}
	return nil
}
