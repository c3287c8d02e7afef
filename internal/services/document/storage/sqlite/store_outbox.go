package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

const outboxColumns = `id, document_id, scope, idx, position, signal_type, payload, attempt_count, next_attempt_at, last_error, enqueued_at`

// OutboxEntry describes one outbox row for inspection tooling.
type OutboxEntry struct {
	Envelope  signal.Envelope
	Status    string
	UpdatedAt time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner, extra ...any) (signal.Envelope, error) {
	var (
		env         signal.Envelope
		scope       string
		payload     string
		nextAttempt int64
		enqueuedAt  int64
	)
	dest := []any{
		&env.ID, &env.DocumentID, &scope, &env.Index, &env.Position, &env.Signal.Type,
		&payload, &env.Attempts, &nextAttempt, &env.LastError, &enqueuedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return signal.Envelope{}, err
	}
	env.Scope = action.Scope(scope)
	if payload != "" {
		env.Signal.Payload = json.RawMessage(payload)
	}
	env.NextAttempt = fromMillis(nextAttempt)
	env.EnqueuedAt = fromMillis(enqueuedAt)
	return env, nil
}

// ClaimSignals leases up to limit due envelopes. Rows left processing past
// the lease are treated as abandoned and claimed again.
func (s *Store) ClaimSignals(ctx context.Context, now time.Time, limit int) ([]signal.Envelope, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin outbox claim tx: %w", err)
	}
	defer tx.Rollback()

	staleBefore := now.Add(-storage.OutboxProcessingLease)
	rows, err := tx.QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM signal_outbox
		 WHERE (
			 status IN ('pending', 'failed') AND next_attempt_at <= ?
		 ) OR (
			 status = 'processing' AND updated_at <= ?
		 )
		 ORDER BY next_attempt_at, seq
		 LIMIT ?`,
		toMillis(now),
		toMillis(staleBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due outbox rows: %w", err)
	}
	candidates := make([]signal.Envelope, 0, limit)
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due outbox row: %w", err)
		}
		candidates = append(candidates, env)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate due outbox rows: %w", err)
	}
	rows.Close()

	claimed := make([]signal.Envelope, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := tx.ExecContext(ctx,
			`UPDATE signal_outbox
			 SET status = 'processing', updated_at = ?
			 WHERE id = ?
			   AND (
			   	(status IN ('pending', 'failed') AND next_attempt_at <= ?)
			   	OR (status = 'processing' AND updated_at <= ?)
			   )`,
			toMillis(now),
			candidate.ID,
			toMillis(now),
			toMillis(staleBefore),
		)
		if err != nil {
			return nil, fmt.Errorf("claim outbox row %s: %w", candidate.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim outbox row rows affected %s: %w", candidate.ID, err)
		}
		if affected == 1 {
			claimed = append(claimed, candidate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outbox claim tx: %w", err)
	}
	return claimed, nil
}

// CompleteSignal deletes a delivered envelope.
func (s *Store) CompleteSignal(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM signal_outbox WHERE id = ? AND status = 'processing'`, id,
	)
	if err != nil {
		return fmt.Errorf("complete outbox row %s: %w", id, err)
	}
	return ensureSingleRow(result, id, "complete outbox row")
}

// RetrySignal records a failed delivery; the row is parked as dead once it
// reaches the dead letter threshold.
func (s *Store) RetrySignal(ctx context.Context, id string, nextAttempt time.Time, lastErr string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox retry tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRowContext(ctx,
		`SELECT attempt_count FROM signal_outbox WHERE id = ? AND status = 'processing'`, id,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("retry outbox row %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read outbox row %s: %w", id, err)
	}
	attempts++

	result, err := tx.ExecContext(ctx,
		`UPDATE signal_outbox
		 SET status = ?,
		     attempt_count = ?,
		     next_attempt_at = ?,
		     last_error = ?,
		     updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		storage.RetryStatus(attempts),
		attempts,
		toMillis(nextAttempt),
		lastErr,
		toMillis(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox retry for row %s: %w", id, err)
	}
	if err := ensureSingleRow(result, id, "mark outbox retry for row"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox retry tx: %w", err)
	}
	return nil
}

func ensureSingleRow(result sql.Result, id, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected %s: %w", operation, id, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s %s: %w", operation, id, storage.ErrNotFound)
	}
	return nil
}

// OutboxSummary returns queue depth by status.
func (s *Store) OutboxSummary(ctx context.Context) (storage.OutboxSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OutboxSummary{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM signal_outbox GROUP BY status`,
	)
	if err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("query outbox summary counts: %w", err)
	}
	defer rows.Close()

	var summary storage.OutboxSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return storage.OutboxSummary{}, fmt.Errorf("scan outbox summary count: %w", err)
		}
		summary.Add(strings.ToLower(strings.TrimSpace(status)), count)
	}
	if err := rows.Err(); err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("iterate outbox summary counts: %w", err)
	}
	return summary, nil
}

// ListOutbox lists outbox rows, optionally filtered by status.
func (s *Store) ListOutbox(ctx context.Context, status string, limit int) ([]OutboxEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []OutboxEntry{}, nil
	}
	normalized, err := normalizeOutboxStatus(status)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + outboxColumns + `, status, updated_at FROM signal_outbox`
	args := []any{}
	if normalized != "" {
		query += ` WHERE status = ?`
		args = append(args, normalized)
	}
	query += ` ORDER BY next_attempt_at, seq LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outbox rows: %w", err)
	}
	defer rows.Close()

	entries := make([]OutboxEntry, 0, limit)
	for rows.Next() {
		var (
			entry     OutboxEntry
			updatedAt int64
		)
		entry.Envelope, err = scanEnvelope(rows, &entry.Status, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		entry.UpdatedAt = fromMillis(updatedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return entries, nil
}

// RequeueDead moves up to limit dead rows back to pending.
func (s *Store) RequeueDead(ctx context.Context, limit int, now time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("outbox requeue limit must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE signal_outbox
		 SET status = 'pending',
		     attempt_count = 0,
		     next_attempt_at = ?,
		     last_error = '',
		     updated_at = ?
		 WHERE seq IN (
			 SELECT seq FROM signal_outbox
			 WHERE status = 'dead'
			 ORDER BY next_attempt_at, seq
			 LIMIT ?
		 )`,
		toMillis(now),
		toMillis(now),
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows affected: %w", err)
	}
	return int(affected), nil
}

func normalizeOutboxStatus(status string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(status))
	switch normalized {
	case "", storage.OutboxStatusPending, storage.OutboxStatusProcessing, storage.OutboxStatusFailed, storage.OutboxStatusDead:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid outbox status %q", status)
	}
}
