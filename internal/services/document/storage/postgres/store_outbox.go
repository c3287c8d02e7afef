package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

const claimSQL = `
		UPDATE signal_outbox SET status = 'processing', updated_at = $1
		WHERE seq IN (
			SELECT seq FROM signal_outbox
			WHERE (status IN ('pending', 'failed') AND next_attempt_at <= $1)
			   OR (status = 'processing' AND updated_at <= $2)
			ORDER BY next_attempt_at, seq
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING seq, id, document_id, scope, idx, position, signal_type, payload, attempt_count, next_attempt_at, last_error, enqueued_at
	`

// ClaimSignals leases up to limit due envelopes. SKIP LOCKED lets several
// relays claim concurrently without handing out the same row twice.
func (s *Store) ClaimSignals(ctx context.Context, now time.Time, limit int) ([]signal.Envelope, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	rows, err := s.db.QueryContext(ctx, claimSQL, now, now.Add(-storage.OutboxProcessingLease), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim signals: %w", err)
	}
	defer rows.Close()

	type claimedRow struct {
		seq int64
		env signal.Envelope
	}
	claimed := make([]claimedRow, 0, limit)
	for rows.Next() {
		var (
			row     claimedRow
			scope   string
			payload string
		)
		if err := rows.Scan(
			&row.seq, &row.env.ID, &row.env.DocumentID, &scope, &row.env.Index, &row.env.Position,
			&row.env.Signal.Type, &payload, &row.env.Attempts, &row.env.NextAttempt, &row.env.LastError, &row.env.EnqueuedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claimed signal: %w", err)
		}
		row.env.Scope = action.Scope(scope)
		if payload != "" {
			row.env.Signal.Payload = json.RawMessage(payload)
		}
		row.env.NextAttempt = row.env.NextAttempt.UTC()
		row.env.EnqueuedAt = row.env.EnqueuedAt.UTC()
		claimed = append(claimed, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claimed signals: %w", err)
	}

	// RETURNING does not preserve the subquery order.
	sort.Slice(claimed, func(i, j int) bool {
		a, b := claimed[i].env.NextAttempt, claimed[j].env.NextAttempt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return claimed[i].seq < claimed[j].seq
	})
	out := make([]signal.Envelope, 0, len(claimed))
	for _, row := range claimed {
		out = append(out, row.env)
	}
	return out, nil
}

// CompleteSignal deletes a delivered envelope.
func (s *Store) CompleteSignal(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM signal_outbox WHERE id = $1 AND status = 'processing'", id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete signal %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

// RetrySignal records a failed delivery; the row is parked as dead once it
// reaches the dead letter threshold.
func (s *Store) RetrySignal(ctx context.Context, id string, nextAttempt time.Time, lastErr string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	query := `
		UPDATE signal_outbox SET
			attempt_count = attempt_count + 1,
			status = CASE WHEN attempt_count + 1 >= $1 THEN 'dead' ELSE 'failed' END,
			next_attempt_at = $2,
			last_error = $3,
			updated_at = $4
		WHERE id = $5 AND status = 'processing'
	`
	result, err := s.db.ExecContext(ctx, query,
		storage.OutboxDeadLetterThreshold, nextAttempt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to retry signal %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for signal %s: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("signal %s is not claimed: %w", id, storage.ErrNotFound)
	}
	return nil
}

// OutboxSummary returns queue depth by status.
func (s *Store) OutboxSummary(ctx context.Context) (storage.OutboxSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OutboxSummary{}, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM signal_outbox GROUP BY status")
	if err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("failed to summarize outbox: %w", err)
	}
	defer rows.Close()

	var summary storage.OutboxSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return storage.OutboxSummary{}, fmt.Errorf("failed to scan outbox summary: %w", err)
		}
		summary.Add(status, count)
	}
	if err := rows.Err(); err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("failed to iterate outbox summary: %w", err)
	}
	return summary, nil
}
