package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
	boltstore "github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/bbolt"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/postgres"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/sqlite"
)

// Store backends accepted by -backend.
const (
	BackendSQLite   = "sqlite"
	BackendBolt     = "bbolt"
	BackendPostgres = "postgres"
)

// journal is a document store that also owns its signal outbox.
type journal interface {
	storage.Store
	storage.Outbox
}

// outboxLister lists outbox rows for the report. Only the sqlite store keeps
// enough row metadata to implement it.
type outboxLister interface {
	ListOutbox(ctx context.Context, status string, limit int) ([]sqlite.OutboxEntry, error)
}

// deadRequeuer moves dead rows back to pending.
type deadRequeuer interface {
	RequeueDead(ctx context.Context, limit int, now time.Time) (int, error)
}

func openJournal(ctx context.Context, cfg Config) (journal, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendSQLite:
		path, err := prepareFilePath(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return store, nil
	case BackendBolt:
		path, err := prepareFilePath(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bbolt journal: %w", err)
		}
		return store, nil
	case BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres journal: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)", cfg.Backend, BackendSQLite, BackendBolt, BackendPostgres)
	}
}

func prepareFilePath(path string) (string, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	if cleanPath == "." || cleanPath == "" {
		return "", fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create storage dir: %w", err)
		}
	}
	return cleanPath, nil
}
