package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

// Config wires a Handler.
type Config struct {
	Types          *document.Registry
	Store          storage.Store
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Now stamps new documents and operations. Defaults to UTC wall time
	// truncated to the millisecond, the precision every store keeps.
	Now func() time.Time
}

// Handler creates, loads and mutates documents backed by a store.
type Handler struct {
	types *document.Registry
	store storage.Store
	now   func() time.Time
	inst  instruments
	locks keyedMutex

	mu    sync.RWMutex
	cache map[string]*document.Document
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewHandler builds a handler from cfg.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Types == nil {
		return nil, ErrTypesRequired
	}
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	inst, err := newInstruments(cfg.TracerProvider, cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = defaultNow
	}
	return &Handler{
		types: cfg.Types,
		store: cfg.Store,
		now:   now,
		inst:  inst,
		cache: make(map[string]*document.Document),
	}, nil
}

// Create builds an empty document of documentType and records it.
func (h *Handler) Create(ctx context.Context, documentType string, opts ...document.Option) (doc *document.Document, err error) {
	ctx, span := h.inst.tracer.Start(ctx, "document.Create",
		trace.WithAttributes(attribute.String("document.type", documentType)))
	defer func() { finish(span, err) }()

	t, err := h.types.Lookup(documentType)
	if err != nil {
		return nil, err
	}
	opts = append([]document.Option{document.WithClock(h.now)}, opts...)
	doc, err = document.Create(t, opts...)
	if err != nil {
		return nil, err
	}
	header := doc.Header()
	span.SetAttributes(attribute.String("document.id", header.ID))
	if err := h.store.CreateDocument(ctx, storage.DocumentRecord{
		ID:           header.ID,
		DocumentType: header.DocumentType,
		CreatedAt:    header.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("create document %s: %w", header.ID, err)
	}
	h.put(doc)
	return doc, nil
}

// Load returns the latest document for documentID, rehydrating it from the
// store when it is not cached. A log that fails replay verification yields a
// non-retryable integrity error.
func (h *Handler) Load(ctx context.Context, documentID string) (doc *document.Document, err error) {
	ctx, span := h.inst.start(ctx, "document.Load", documentID)
	defer func() { finish(span, err) }()

	if doc, ok := h.get(documentID); ok {
		span.SetAttributes(attribute.Bool("document.cached", true))
		return doc, nil
	}
	h.inst.cacheMiss.Add(ctx, 1)
	doc, err = h.rehydrate(ctx, documentID)
	if err != nil {
		return nil, err
	}
	h.put(doc)
	return doc, nil
}

// Verify rehydrates documentID from the store, bypassing the cache, and
// returns the verified document.
func (h *Handler) Verify(ctx context.Context, documentID string) (doc *document.Document, err error) {
	ctx, span := h.inst.start(ctx, "document.Verify", documentID)
	defer func() { finish(span, err) }()

	return h.rehydrate(ctx, documentID)
}

// Apply runs act against the latest document and persists the resulting
// operation with its signals before returning. Writes to one document are
// serialized. A validation failure records nothing and returns an error; a
// domain rejection is recorded and reported through the result's Rejected.
func (h *Handler) Apply(ctx context.Context, documentID string, act action.Action) (result document.Result, err error) {
	ctx, span := h.inst.start(ctx, "document.Apply", documentID)
	defer func() { finish(span, err) }()
	span.SetAttributes(
		attribute.String("action.type", string(act.Type)),
		attribute.String("action.scope", string(act.Scope)),
	)

	unlock := h.locks.lock(documentID)
	defer unlock()

	doc, err := h.Load(ctx, documentID)
	if err != nil {
		return document.Result{}, err
	}
	applied, err := doc.Apply(act)
	if err != nil {
		return document.Result{}, err
	}
	op := applied.Operation
	if err := h.store.AppendOperation(ctx, documentID, op, applied.Signals); err != nil {
		h.drop(documentID)
		if errors.Is(err, storage.ErrConflict) {
			return document.Result{}, fmt.Errorf("append %s operation %d: %w", op.Scope, op.Index, err)
		}
		return document.Result{}, fmt.Errorf("append operation: %w", err)
	}
	h.put(applied.Document)

	attrs := metric.WithAttributes(
		attribute.String("document.type", applied.Document.Header().DocumentType),
		attribute.String("action.scope", string(op.Scope)),
	)
	h.inst.appended.Add(ctx, 1, attrs)
	span.SetAttributes(attribute.Int("operation.index", op.Index))
	if op.Rejected() {
		h.inst.rejected.Add(ctx, 1, attrs)
		span.SetAttributes(attribute.String("operation.error_code", op.ErrorCode()))
	}
	return applied, nil
}

// Forget drops documentID from the cache.
func (h *Handler) Forget(documentID string) {
	h.drop(documentID)
}

func (h *Handler) rehydrate(ctx context.Context, documentID string) (*document.Document, error) {
	record, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	t, err := h.types.Lookup(record.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, err)
	}
	logs, err := h.store.ListOperations(ctx, documentID)
	if err != nil {
		h.drop(documentID)
		return nil, fmt.Errorf("list operations %s: %w", documentID, err)
	}
	doc, err := document.Rehydrate(t, logs,
		document.WithID(documentID),
		document.WithCreatedAt(record.CreatedAt),
		document.WithClock(h.now),
	)
	if err != nil {
		if errors.Is(err, document.ErrIntegrity) {
			h.drop(documentID)
			h.inst.integrity.Add(ctx, 1, metric.WithAttributes(attribute.String("document.type", t.Name)))
			return nil, wrapNonRetryable(fmt.Errorf("document %s: %w", documentID, err))
		}
		return nil, fmt.Errorf("rehydrate %s: %w", documentID, err)
	}
	return doc, nil
}

func (h *Handler) get(documentID string) (*document.Document, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, ok := h.cache[documentID]
	return doc, ok
}

func (h *Handler) put(doc *document.Document) {
	h.mu.Lock()
	h.cache[doc.ID()] = doc
	h.mu.Unlock()
}

func (h *Handler) drop(documentID string) {
	h.mu.Lock()
	delete(h.cache, documentID)
	h.mu.Unlock()
}
