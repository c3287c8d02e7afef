package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
	"go.etcd.io/bbolt"
)

func putOutbox(outbox *bbolt.Bucket, value outboxValue) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal outbox row: %w", err)
	}
	if err := outbox.Put([]byte(value.Envelope.ID), payload); err != nil {
		return fmt.Errorf("put outbox row %s: %w", value.Envelope.ID, err)
	}
	return nil
}

func getOutbox(outbox *bbolt.Bucket, id string) (outboxValue, bool, error) {
	payload := outbox.Get([]byte(id))
	if payload == nil {
		return outboxValue{}, false, nil
	}
	var value outboxValue
	if err := json.Unmarshal(payload, &value); err != nil {
		return outboxValue{}, false, fmt.Errorf("unmarshal outbox row %s: %w", id, err)
	}
	return value, true, nil
}

// ClaimSignals leases up to limit due envelopes.
func (s *Store) ClaimSignals(ctx context.Context, now time.Time, limit int) ([]signal.Envelope, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()
	staleBefore := now.Add(-storage.OutboxProcessingLease)

	var claimed []signal.Envelope
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, outboxBucket)
		if err != nil {
			return err
		}
		due := make([]outboxValue, 0)
		if err := outbox.ForEach(func(_, payload []byte) error {
			var value outboxValue
			if err := json.Unmarshal(payload, &value); err != nil {
				return fmt.Errorf("unmarshal outbox row: %w", err)
			}
			switch value.Status {
			case storage.OutboxStatusPending, storage.OutboxStatusFailed:
				if !value.Envelope.NextAttempt.After(now) {
					due = append(due, value)
				}
			case storage.OutboxStatusProcessing:
				if !value.UpdatedAt.After(staleBefore) {
					due = append(due, value)
				}
			}
			return nil
		}); err != nil {
			return err
		}
		sort.Slice(due, func(i, j int) bool {
			if !due[i].Envelope.NextAttempt.Equal(due[j].Envelope.NextAttempt) {
				return due[i].Envelope.NextAttempt.Before(due[j].Envelope.NextAttempt)
			}
			return due[i].Seq < due[j].Seq
		})
		if len(due) > limit {
			due = due[:limit]
		}
		claimed = make([]signal.Envelope, 0, len(due))
		for _, value := range due {
			value.Status = storage.OutboxStatusProcessing
			value.UpdatedAt = now
			if err := putOutbox(outbox, value); err != nil {
				return err
			}
			claimed = append(claimed, value.Envelope)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteSignal deletes a delivered envelope.
func (s *Store) CompleteSignal(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, outboxBucket)
		if err != nil {
			return err
		}
		value, ok, err := getOutbox(outbox, id)
		if err != nil {
			return err
		}
		if !ok || value.Status != storage.OutboxStatusProcessing {
			return fmt.Errorf("complete outbox row %s: %w", id, storage.ErrNotFound)
		}
		return outbox.Delete([]byte(id))
	})
}

// RetrySignal records a failed delivery of a claimed envelope.
func (s *Store) RetrySignal(ctx context.Context, id string, nextAttempt time.Time, lastErr string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, outboxBucket)
		if err != nil {
			return err
		}
		value, ok, err := getOutbox(outbox, id)
		if err != nil {
			return err
		}
		if !ok || value.Status != storage.OutboxStatusProcessing {
			return fmt.Errorf("retry outbox row %s: %w", id, storage.ErrNotFound)
		}
		value.Envelope.Attempts++
		value.Envelope.NextAttempt = nextAttempt.UTC()
		value.Envelope.LastError = lastErr
		value.Status = storage.RetryStatus(value.Envelope.Attempts)
		value.UpdatedAt = time.Now().UTC()
		return putOutbox(outbox, value)
	})
}

// OutboxSummary counts envelopes by status.
func (s *Store) OutboxSummary(ctx context.Context) (storage.OutboxSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OutboxSummary{}, err
	}
	var summary storage.OutboxSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, outboxBucket)
		if err != nil {
			return err
		}
		return outbox.ForEach(func(_, payload []byte) error {
			var value outboxValue
			if err := json.Unmarshal(payload, &value); err != nil {
				return fmt.Errorf("unmarshal outbox row: %w", err)
			}
			summary.Add(value.Status, 1)
			return nil
		})
	})
	if err != nil {
		return storage.OutboxSummary{}, err
	}
	return summary, nil
}
