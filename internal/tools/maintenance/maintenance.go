// Package maintenance verifies stored document logs and inspects the signal
// outbox of a document journal.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	entrypoint "github.com/powerhouse-inc/contributor-billing/internal/platform/cmd"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/engine"
)

// ErrVerificationFailed is returned when at least one document fails replay
// verification.
var ErrVerificationFailed = errors.New("document verification failed")

// Config holds maintenance command configuration.
type Config struct {
	Backend     string        `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath      string        `env:"DB_PATH" envDefault:"data/documents.db"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
	Timeout     time.Duration `env:"MAINTENANCE_TIMEOUT" envDefault:"10m"`

	DocumentID             string
	DocumentIDs            string
	JSONOutput             bool
	OutboxReport           bool
	OutboxStatus           string
	OutboxLimit            int
	OutboxRequeueDead      bool
	OutboxRequeueDeadLimit int
}

// ParseConfig loads env defaults and parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{OutboxLimit: 50}
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "journal backend (sqlite|bbolt|postgres)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite or bbolt journal")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "postgres connection string")
	fs.StringVar(&cfg.DocumentID, "document-id", "", "verify a single document")
	fs.StringVar(&cfg.DocumentIDs, "document-ids", "", "comma-separated document IDs to verify")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.OutboxReport, "outbox-report", false, "report signal outbox depth and rows")
	fs.StringVar(&cfg.OutboxStatus, "outbox-status", "", "optional outbox status filter (pending|processing|failed|dead)")
	fs.IntVar(&cfg.OutboxLimit, "outbox-limit", cfg.OutboxLimit, "max outbox rows to print")
	fs.BoolVar(&cfg.OutboxRequeueDead, "outbox-requeue-dead", false, "requeue a bounded batch of dead outbox rows")
	fs.IntVar(&cfg.OutboxRequeueDeadLimit, "outbox-requeue-dead-limit", 0, "max dead outbox rows to requeue (required with -outbox-requeue-dead)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	selected := cfg.DocumentID != "" || cfg.DocumentIDs != ""
	if cfg.OutboxRequeueDead {
		if cfg.OutboxReport {
			return errors.New("-outbox-requeue-dead cannot be combined with -outbox-report")
		}
		if selected {
			return errors.New("-outbox-requeue-dead cannot be combined with -document-id or -document-ids")
		}
		if cfg.OutboxRequeueDeadLimit <= 0 {
			return errors.New("-outbox-requeue-dead-limit must be > 0")
		}
	}
	if cfg.OutboxReport {
		if selected {
			return errors.New("-outbox-report cannot be combined with -document-id or -document-ids")
		}
		if cfg.OutboxLimit <= 0 {
			return errors.New("-outbox-limit must be > 0")
		}
	}
	if cfg.DocumentID != "" && cfg.DocumentIDs != "" {
		return errors.New("use -document-id or -document-ids, not both")
	}
	return nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMaintenance, func(ctx context.Context) error {
		store, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		return runWithJournal(ctx, cfg, store, time.Now().UTC(), out, errOut)
	})
}

// runWithJournal contains the maintenance logic with an injectable journal.
// It owns the journal lifecycle and closes it on return.
func runWithJournal(ctx context.Context, cfg Config, store journal, now time.Time, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close journal: %v\n", err)
		}
	}()

	if err := cfg.validate(); err != nil {
		return err
	}
	switch {
	case cfg.OutboxRequeueDead:
		return runOutboxRequeueDead(ctx, store, cfg.OutboxRequeueDeadLimit, now, cfg.JSONOutput, out)
	case cfg.OutboxReport:
		return runOutboxReport(ctx, store, cfg.OutboxStatus, cfg.OutboxLimit, cfg.JSONOutput, out)
	}
	return runVerify(ctx, cfg, store, out, errOut)
}

type verifyResult struct {
	DocumentID   string                  `json:"document_id"`
	DocumentType string                  `json:"document_type,omitempty"`
	Revisions    map[action.Scope]int    `json:"revisions,omitempty"`
	Rejected     int                     `json:"rejected"`
	StateHashes  map[action.Scope]string `json:"state_hashes,omitempty"`
	ErrorCode    string                  `json:"error_code,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

func (r verifyResult) failed() bool {
	return r.Error != ""
}

type verifySummary struct {
	Mode     string `json:"mode"`
	Verified int    `json:"verified"`
	Failed   int    `json:"failed"`
}

func runVerify(ctx context.Context, cfg Config, store journal, out io.Writer, errOut io.Writer) error {
	registry, err := doctypes.NewRegistry()
	if err != nil {
		return fmt.Errorf("build document types: %w", err)
	}
	handler, err := engine.NewHandler(engine.Config{Types: registry, Store: store})
	if err != nil {
		return err
	}

	ids, err := resolveDocumentIDs(cfg.DocumentID, cfg.DocumentIDs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		records, err := store.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for _, record := range records {
			ids = append(ids, record.ID)
		}
	}

	summary := verifySummary{Mode: "verify"}
	for _, documentID := range ids {
		result := verifyDocument(ctx, handler, documentID)
		if result.failed() {
			summary.Failed++
		} else {
			summary.Verified++
		}
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			printResult(out, errOut, result)
		}
	}
	if cfg.JSONOutput {
		outputJSON(out, errOut, summary)
	} else {
		fmt.Fprintf(out, "Verified %d documents, %d failed\n", summary.Verified, summary.Failed)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrVerificationFailed, summary.Failed, len(ids))
	}
	return nil
}

func verifyDocument(ctx context.Context, handler *engine.Handler, documentID string) verifyResult {
	result := verifyResult{DocumentID: documentID}
	doc, err := handler.Verify(ctx, documentID)
	if err != nil {
		result.ErrorCode = string(engine.Classify(err).Code)
		result.Error = err.Error()
		return result
	}

	header := doc.Header()
	result.DocumentType = header.DocumentType
	result.Revisions = header.Revision
	result.StateHashes = make(map[action.Scope]string, len(header.Revision))
	for scope := range header.Revision {
		hash, err := doc.StateHash(scope)
		if err != nil {
			result.Error = fmt.Sprintf("hash %s state: %v", scope, err)
			return result
		}
		result.StateHashes[scope] = hash
		for _, op := range doc.Operations(scope) {
			if op.Rejected() {
				result.Rejected++
			}
		}
	}
	return result
}

func resolveDocumentIDs(singleID, list string) ([]string, error) {
	singleID = strings.TrimSpace(singleID)
	if singleID != "" && strings.TrimSpace(list) != "" {
		return nil, errors.New("use -document-id or -document-ids, not both")
	}
	if singleID != "" {
		return []string{singleID}, nil
	}
	ids := splitCSV(list)
	if strings.TrimSpace(list) != "" && len(ids) == 0 {
		return nil, errors.New("-document-ids has no document IDs")
	}
	return ids, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func outputJSON(out io.Writer, errOut io.Writer, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result verifyResult) {
	if result.failed() {
		code := result.ErrorCode
		if code == "" {
			code = "UNKNOWN"
		}
		fmt.Fprintf(errOut, "[%s] Error (%s): %s\n", result.DocumentID, code, result.Error)
		return
	}
	scopes := make([]string, 0, len(result.Revisions))
	for scope := range result.Revisions {
		scopes = append(scopes, string(scope))
	}
	sort.Strings(scopes)
	parts := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		parts = append(parts, fmt.Sprintf("%s=%d", scope, result.Revisions[action.Scope(scope)]))
	}
	fmt.Fprintf(out, "[%s] %s verified (%s, %d rejected)\n", result.DocumentID, result.DocumentType, strings.Join(parts, " "), result.Rejected)
}
