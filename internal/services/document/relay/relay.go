package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

const (
	// DefaultBatchSize bounds the envelopes claimed per drain pass.
	DefaultBatchSize = 64
	// DefaultInterval is the poll interval used when Run gets none.
	DefaultInterval = 2 * time.Second
)

var (
	// ErrOutboxRequired indicates a relay without an outbox.
	ErrOutboxRequired = errors.New("signal outbox is required")
	// ErrPublisherRequired indicates a relay without a publisher.
	ErrPublisherRequired = errors.New("signal publisher is required")
)

// Relay moves envelopes from an outbox to a publisher.
type Relay struct {
	Outbox    storage.Outbox
	Publisher Publisher
	BatchSize int
	Now       func() time.Time
	// Logf reports per-envelope and per-pass failures. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Stats counts what one drain pass did.
type Stats struct {
	Claimed   int
	Published int
	Failed    int
}

func (r Relay) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r Relay) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (r Relay) batchSize() int {
	if r.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return r.BatchSize
}

// Drain claims one batch of due envelopes and publishes each. A failed publish
// reschedules the envelope with exponential backoff; repeated failures move it
// to the dead letter status.
func (r Relay) Drain(ctx context.Context) (Stats, error) {
	if r.Outbox == nil {
		return Stats{}, ErrOutboxRequired
	}
	if r.Publisher == nil {
		return Stats{}, ErrPublisherRequired
	}

	now := r.now()
	envelopes, err := r.Outbox.ClaimSignals(ctx, now, r.batchSize())
	if err != nil {
		return Stats{}, fmt.Errorf("claim signals: %w", err)
	}
	stats := Stats{Claimed: len(envelopes)}
	for _, env := range envelopes {
		if err := r.Publisher.Publish(ctx, env); err != nil {
			stats.Failed++
			attempt := env.Attempts + 1
			next := now.Add(storage.RetryBackoff(attempt))
			if retryErr := r.Outbox.RetrySignal(ctx, env.ID, next, err.Error()); retryErr != nil {
				return stats, fmt.Errorf("retry signal %s: %w", env.ID, retryErr)
			}
			if storage.RetryStatus(attempt) == storage.OutboxStatusDead {
				r.logf("signal %s dead after %d attempts: %v", env.ID, attempt, err)
			}
			continue
		}
		if err := r.Outbox.CompleteSignal(ctx, env.ID); err != nil {
			return stats, fmt.Errorf("complete signal %s: %w", env.ID, err)
		}
		stats.Published++
	}
	return stats, nil
}

// Run drains the outbox every interval until ctx is done. A full batch is
// followed by another pass without waiting.
func (r Relay) Run(ctx context.Context, interval time.Duration) error {
	if r.Outbox == nil {
		return ErrOutboxRequired
	}
	if r.Publisher == nil {
		return ErrPublisherRequired
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	r.drainAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.drainAll(ctx)
		}
	}
}

func (r Relay) drainAll(ctx context.Context) {
	for ctx.Err() == nil {
		stats, err := r.Drain(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logf("signal relay drain failed: %v", err)
			}
			return
		}
		if stats.Claimed < r.batchSize() || stats.Published == 0 {
			return
		}
	}
}
