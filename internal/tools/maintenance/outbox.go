package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

type outboxRow struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Type          string    `json:"type"`
	AttemptCount  int       `json:"attempt_count"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
}

type outboxReport struct {
	Mode    string                `json:"mode"`
	Status  string                `json:"status,omitempty"`
	Limit   int                   `json:"limit"`
	Summary storage.OutboxSummary `json:"summary"`
	Rows    []outboxRow           `json:"rows,omitempty"`
}

type outboxRequeueReport struct {
	Mode      string `json:"mode"`
	Limit     int    `json:"limit"`
	Requeued  int    `json:"requeued"`
	Timestamp string `json:"timestamp"`
}

func runOutboxReport(ctx context.Context, store journal, status string, limit int, jsonOutput bool, out io.Writer) error {
	if limit <= 0 {
		return fmt.Errorf("outbox limit must be > 0")
	}
	summary, err := store.OutboxSummary(ctx)
	if err != nil {
		return fmt.Errorf("read outbox summary: %w", err)
	}

	report := outboxReport{
		Mode:    "outbox",
		Status:  strings.TrimSpace(status),
		Limit:   limit,
		Summary: summary,
	}
	lister, listable := store.(outboxLister)
	if listable {
		entries, err := lister.ListOutbox(ctx, status, limit)
		if err != nil {
			return fmt.Errorf("list outbox rows: %w", err)
		}
		for _, entry := range entries {
			report.Rows = append(report.Rows, outboxRow{
				ID:            entry.Envelope.ID,
				Status:        entry.Status,
				Type:          entry.Envelope.Signal.Type,
				AttemptCount:  entry.Envelope.Attempts,
				NextAttemptAt: entry.Envelope.NextAttempt,
				LastError:     entry.Envelope.LastError,
			})
		}
	}

	if jsonOutput {
		encoded, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode outbox report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}

	fmt.Fprintf(
		out,
		"Outbox summary: pending=%d processing=%d failed=%d dead=%d\n",
		summary.Pending,
		summary.Processing,
		summary.Failed,
		summary.Dead,
	)
	if !listable {
		fmt.Fprintln(out, "Rows: not available for this backend")
		return nil
	}
	if report.Status == "" {
		fmt.Fprintf(out, "Rows (all statuses, limit=%d):\n", limit)
	} else {
		fmt.Fprintf(out, "Rows (status=%s, limit=%d):\n", report.Status, limit)
	}
	for _, row := range report.Rows {
		fmt.Fprintf(
			out,
			"- %s status=%s attempts=%d next_attempt_at=%s type=%s\n",
			row.ID,
			row.Status,
			row.AttemptCount,
			row.NextAttemptAt.Format(time.RFC3339),
			row.Type,
		)
		if strings.TrimSpace(row.LastError) != "" {
			fmt.Fprintf(out, "  last_error=%s\n", row.LastError)
		}
	}
	return nil
}

func runOutboxRequeueDead(ctx context.Context, store journal, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	requeuer, ok := store.(deadRequeuer)
	if !ok {
		return fmt.Errorf("outbox requeue is not supported by this backend")
	}
	requeued, err := requeuer.RequeueDead(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	if jsonOutput {
		encoded, err := json.Marshal(outboxRequeueReport{
			Mode:      "outbox_requeue_dead",
			Limit:     limit,
			Requeued:  requeued,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("encode requeue report: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}
	fmt.Fprintf(out, "Requeued %d dead outbox rows (limit=%d)\n", requeued, limit)
	return nil
}
