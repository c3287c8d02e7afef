// Package bbolt persists document journals in a single-file BoltDB key-value
// store.
//
// Layout:
//
//	documents/{id}                       -> JSON header
//	operations/{id}/{scope}/{index u64}  -> JSON operation
//	outbox/{envelope id}                 -> JSON outbox row
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
	"go.etcd.io/bbolt"
)

const (
	documentBucket  = "documents"
	operationBucket = "operations"
	outboxBucket    = "outbox"
)

// Store provides a BoltDB-backed storage.Store and storage.Outbox.
type Store struct {
	db *bbolt.DB
}

type documentValue struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"documentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

type outboxValue struct {
	Seq       uint64          `json:"seq"`
	Envelope  signal.Envelope `json:"envelope"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentBucket, operationBucket, outboxBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%s bucket is missing", name)
	}
	return b, nil
}

func indexKey(index int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

// scopeLength derives the log length from the last index key.
func scopeLength(scopeOps *bbolt.Bucket) int {
	last, _ := scopeOps.Cursor().Last()
	if last == nil {
		return 0
	}
	return int(binary.BigEndian.Uint64(last)) + 1
}

// CreateDocument stores a document header and its operations bucket.
func (s *Store) CreateDocument(ctx context.Context, record storage.DocumentRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	payload, err := json.Marshal(documentValue{
		ID:           record.ID,
		DocumentType: record.DocumentType,
		CreatedAt:    record.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, err := bucket(tx, documentBucket)
		if err != nil {
			return err
		}
		if docs.Get([]byte(record.ID)) != nil {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, record.ID)
		}
		ops, err := bucket(tx, operationBucket)
		if err != nil {
			return err
		}
		if _, err := ops.CreateBucketIfNotExists([]byte(record.ID)); err != nil {
			return fmt.Errorf("create operations bucket %s: %w", record.ID, err)
		}
		return docs.Put([]byte(record.ID), payload)
	})
}

// GetDocument fetches a document header by id.
func (s *Store) GetDocument(ctx context.Context, id string) (storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DocumentRecord{}, err
	}
	var record storage.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs, err := bucket(tx, documentBucket)
		if err != nil {
			return err
		}
		payload := docs.Get([]byte(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		record, err = decodeDocument(payload)
		return err
	})
	if err != nil {
		return storage.DocumentRecord{}, err
	}
	return record, nil
}

func decodeDocument(payload []byte) (storage.DocumentRecord, error) {
	var value documentValue
	if err := json.Unmarshal(payload, &value); err != nil {
		return storage.DocumentRecord{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return storage.DocumentRecord{ID: value.ID, DocumentType: value.DocumentType, CreatedAt: value.CreatedAt}, nil
}

// ListDocuments returns every header ordered by creation time then id.
func (s *Store) ListDocuments(ctx context.Context) ([]storage.DocumentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	records := make([]storage.DocumentRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs, err := bucket(tx, documentBucket)
		if err != nil {
			return err
		}
		return docs.ForEach(func(_, payload []byte) error {
			record, err := decodeDocument(payload)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// AppendOperation writes op and its signal envelopes in one update
// transaction. BoltDB serializes writers, so the length check cannot race.
func (s *Store) AppendOperation(ctx context.Context, documentID string, op operation.Operation, signals []signal.Signal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateAppend(documentID, op); err != nil {
		return err
	}
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, operationBucket)
		if err != nil {
			return err
		}
		docOps := ops.Bucket([]byte(documentID))
		if docOps == nil {
			return storage.ErrNotFound
		}
		scopeOps, err := docOps.CreateBucketIfNotExists([]byte(op.Scope))
		if err != nil {
			return fmt.Errorf("create scope bucket %s/%s: %w", documentID, op.Scope, err)
		}
		length := scopeLength(scopeOps)
		if op.Index != length {
			return storage.ConflictError(documentID, op.Scope, length, op.Index)
		}
		if err := scopeOps.Put(indexKey(op.Index), payload); err != nil {
			return fmt.Errorf("put operation %s/%s/%d: %w", documentID, op.Scope, op.Index, err)
		}

		outbox, err := bucket(tx, outboxBucket)
		if err != nil {
			return err
		}
		for _, env := range signal.Wrap(documentID, op.Scope, op.Index, signals, op.Timestamp) {
			seq, err := outbox.NextSequence()
			if err != nil {
				return fmt.Errorf("outbox sequence: %w", err)
			}
			if err := putOutbox(outbox, outboxValue{
				Seq:       seq,
				Envelope:  env,
				Status:    storage.OutboxStatusPending,
				UpdatedAt: env.EnqueuedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListOperations returns the document's operations grouped by scope.
func (s *Store) ListOperations(ctx context.Context, documentID string) (map[action.Scope][]operation.Operation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	logs := make(map[action.Scope][]operation.Operation)
	err := s.db.View(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, operationBucket)
		if err != nil {
			return err
		}
		docOps := ops.Bucket([]byte(documentID))
		if docOps == nil {
			return storage.ErrNotFound
		}
		return docOps.ForEachBucket(func(scope []byte) error {
			scopeOps := docOps.Bucket(scope)
			list := make([]operation.Operation, 0)
			if err := scopeOps.ForEach(func(_, payload []byte) error {
				var op operation.Operation
				if err := json.Unmarshal(payload, &op); err != nil {
					return fmt.Errorf("unmarshal operation: %w", err)
				}
				list = append(list, op)
				return nil
			}); err != nil {
				return err
			}
			logs[action.Scope(scope)] = list
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
