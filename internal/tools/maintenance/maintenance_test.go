package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/accounts"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/engine"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/memory"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/sqlite"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func addAccount(t *testing.T, id, address string) action.Action {
	t.Helper()
	input, err := json.Marshal(map[string]any{"id": id, "account": address, "name": "Operations"})
	if err != nil {
		t.Fatalf("encode input: %v", err)
	}
	return action.Action{Type: "ADD_ACCOUNT", Scope: action.ScopeGlobal, Input: input}
}

// seed creates one accounts document with an accepted and a rejected operation.
func seed(t *testing.T, store journal, documentID string) {
	t.Helper()
	ctx := context.Background()
	registry, err := doctypes.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	handler, err := engine.NewHandler(engine.Config{
		Types: registry,
		Store: store,
		Now:   func() time.Time { return now.Add(-time.Hour) },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if _, err := handler.Create(ctx, accounts.TypeName, document.WithID(documentID)); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, act := range []action.Action{
		addAccount(t, "ops", "0x1111111111111111111111111111111111111111"),
		addAccount(t, "ops", "0x2222222222222222222222222222222222222222"),
	} {
		if _, err := handler.Apply(ctx, documentID, act); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
}

func openSQLite(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return store
}

type tamperedJournal struct {
	journal
}

func (j tamperedJournal) ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error) {
	logs, err := j.journal.ListOperations(ctx, documentID)
	if err == nil && len(logs[action.ScopeGlobal]) > 0 {
		logs[action.ScopeGlobal][0].Hash = "0000"
	}
	return logs, err
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.DBPath != "data/documents.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.OutboxLimit != 50 || cfg.Timeout != 10*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CONTRIBUTOR_BILLING_DB_PATH", "env.db")
	t.Setenv("CONTRIBUTOR_BILLING_STORE_BACKEND", "bbolt")

	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db-path", "flag.db", "-document-id", "doc-1", "-json"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("db path = %q, want flag override", cfg.DBPath)
	}
	if cfg.Backend != BackendBolt {
		t.Fatalf("backend = %q, want env value", cfg.Backend)
	}
	if cfg.DocumentID != "doc-1" || !cfg.JSONOutput {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestResolveDocumentIDs(t *testing.T) {
	tests := []struct {
		single   string
		list     string
		expected []string
		wantErr  bool
	}{
		{single: "", list: "", expected: []string{}},
		{single: "d1", list: "d2", wantErr: true},
		{single: "d1", list: "", expected: []string{"d1"}},
		{single: "", list: "d1, d2", expected: []string{"d1", "d2"}},
		{single: "", list: " , ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := resolveDocumentIDs(tc.single, tc.list)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q/%q", tc.single, tc.list)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q/%q: %v", tc.single, tc.list, err)
		}
		if !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("expected %v, got %v", tc.expected, got)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(" a, b ,, "); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected trimmed entries, got %v", got)
	}
}

func TestValidateFlagCombinations(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"requeue with report", Config{OutboxRequeueDead: true, OutboxReport: true, OutboxRequeueDeadLimit: 1, OutboxLimit: 1}},
		{"requeue without limit", Config{OutboxRequeueDead: true}},
		{"requeue with document", Config{OutboxRequeueDead: true, OutboxRequeueDeadLimit: 1, DocumentID: "d1"}},
		{"report with document", Config{OutboxReport: true, OutboxLimit: 1, DocumentIDs: "d1"}},
		{"report without limit", Config{OutboxReport: true}},
		{"both document flags", Config{DocumentID: "d1", DocumentIDs: "d2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRunRejectsUnknownBackend(t *testing.T) {
	err := Run(context.Background(), Config{Backend: "mongo"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestRunSetsUpTelemetry(t *testing.T) {
	t.Setenv("CONTRIBUTOR_BILLING_OTEL_SAMPLE_RATIO", "2")
	path := filepath.Join(t.TempDir(), "documents.db")

	err := Run(context.Background(), Config{Backend: BackendSQLite, DBPath: path}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "sample ratio") {
		t.Fatalf("expected telemetry config error, got %v", err)
	}
}

func TestVerifyAllDocumentsSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	store := openSQLite(t, path)
	seed(t, store, "accounts-1")
	seed(t, store, "accounts-2")
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out, errOut bytes.Buffer
	cfg := Config{Backend: BackendSQLite, DBPath: path}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("run: %v (stderr %q)", err, errOut.String())
	}
	text := out.String()
	if !strings.Contains(text, "[accounts-1] powerhouse/accounts verified (global=2, 1 rejected)") {
		t.Fatalf("unexpected output %q", text)
	}
	if !strings.Contains(text, "Verified 2 documents, 0 failed") {
		t.Fatalf("missing summary in %q", text)
	}
}

func TestVerifyReportsIntegrityFailure(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "accounts-1")

	var out, errOut bytes.Buffer
	cfg := Config{DocumentID: "accounts-1", JSONOutput: true}
	err := runWithJournal(context.Background(), cfg, tamperedJournal{store}, now, &out, &errOut)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected result and summary lines, got %q", out.String())
	}
	var result verifyResult
	if err := json.Unmarshal([]byte(lines[0]), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ErrorCode != "INTEGRITY_VIOLATION" || result.DocumentID != "accounts-1" {
		t.Fatalf("result = %+v", result)
	}
	var summary verifySummary
	if err := json.Unmarshal([]byte(lines[1]), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Failed != 1 || summary.Verified != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestVerifyMissingDocument(t *testing.T) {
	var out, errOut bytes.Buffer
	cfg := Config{DocumentID: "missing"}
	err := runWithJournal(context.Background(), cfg, memory.NewStore(), now, &out, &errOut)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if !strings.Contains(errOut.String(), "[missing] Error (NOT_FOUND)") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestOutboxReportSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	store := openSQLite(t, path)
	seed(t, store, "accounts-1")

	var out bytes.Buffer
	cfg := Config{OutboxReport: true, OutboxLimit: 10}
	if err := runWithJournal(context.Background(), cfg, store, now, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Outbox summary: pending=1 processing=0 failed=0 dead=0") {
		t.Fatalf("unexpected summary %q", text)
	}
	if !strings.Contains(text, "- accounts-1:global:0:0 status=pending attempts=0") {
		t.Fatalf("missing row in %q", text)
	}
}

func TestOutboxReportWithoutRows(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "accounts-1")

	var out bytes.Buffer
	cfg := Config{OutboxReport: true, OutboxLimit: 10, JSONOutput: true}
	if err := runWithJournal(context.Background(), cfg, store, now, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	var report outboxReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary.Pending != 1 || len(report.Rows) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestOutboxRequeueDead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	store := openSQLite(t, path)
	seed(t, store, "accounts-1")

	ctx := context.Background()
	claimAt := now
	for attempt := 0; attempt < 8; attempt++ {
		claimed, err := store.ClaimSignals(ctx, claimAt, 10)
		if err != nil || len(claimed) != 1 {
			t.Fatalf("claim attempt %d: %v (%d)", attempt, err, len(claimed))
		}
		if err := store.RetrySignal(ctx, claimed[0].ID, claimAt, "broker down"); err != nil {
			t.Fatalf("retry: %v", err)
		}
		claimAt = claimAt.Add(time.Minute)
	}

	var out bytes.Buffer
	cfg := Config{OutboxRequeueDead: true, OutboxRequeueDeadLimit: 5}
	if err := runWithJournal(ctx, cfg, store, now, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "Requeued 1 dead outbox rows (limit=5)\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestOutboxRequeueUnsupportedBackend(t *testing.T) {
	cfg := Config{OutboxRequeueDead: true, OutboxRequeueDeadLimit: 5}
	err := runWithJournal(context.Background(), cfg, memory.NewStore(), now, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}
