// Package document implements the document aggregate: per-scope state, the
// scoped operation log, copy-on-write application of actions and
// rehydration from a persisted log.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/platform/id"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/encoding"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/signal"
)

// Header carries document metadata. Revision holds the log length per scope.
type Header struct {
	ID             string               `json:"id"`
	DocumentType   string               `json:"documentType"`
	CreatedAt      time.Time            `json:"createdAt"`
	LastModifiedAt time.Time            `json:"lastModifiedAt"`
	Revision       map[action.Scope]int `json:"revision"`
}

func (h Header) clone() Header {
	cp := h
	cp.Revision = make(map[action.Scope]int, len(h.Revision))
	for scope, rev := range h.Revision {
		cp.Revision[scope] = rev
	}
	return cp
}

// Document is an immutable handle on one document revision. Apply returns a
// new handle; the receiver stays valid and unchanged.
type Document struct {
	docType *Type
	header  Header
	state   map[action.Scope]reducer.State
	log     operation.Log
	clock   func() time.Time
}

// Result is the outcome of applying one action.
type Result struct {
	Document  *Document
	Operation operation.Operation
	// Signals are emitted by accepted operations only.
	Signals []signal.Signal
}

// Rejected reports whether the operation recorded a domain rejection.
func (r Result) Rejected() bool {
	return r.Operation.Rejected()
}

// Option customizes Create and Rehydrate.
type Option func(*options)

type options struct {
	id        string
	clock     func() time.Time
	createdAt time.Time
}

// WithID sets the document id instead of generating one.
func WithID(documentID string) Option {
	return func(o *options) {
		o.id = strings.TrimSpace(documentID)
	}
}

// WithClock sets the time source for headers and operation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCreatedAt sets the creation time recorded in the header.
func WithCreatedAt(createdAt time.Time) Option {
	return func(o *options) {
		o.createdAt = createdAt.UTC()
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		generated, err := id.NewID()
		if err != nil {
			return options{}, fmt.Errorf("generate document id: %w", err)
		}
		o.id = generated
	}
	return o, nil
}

// Create builds an empty document with the type's default state in every scope.
func Create(t *Type, opts ...Option) (*Document, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	createdAt := o.createdAt
	if createdAt.IsZero() {
		createdAt = o.clock().UTC()
	}

	doc := &Document{
		docType: t,
		header: Header{
			ID:             o.id,
			DocumentType:   t.Name,
			CreatedAt:      createdAt,
			LastModifiedAt: createdAt,
			Revision:       make(map[action.Scope]int, len(t.Scopes)),
		},
		state: make(map[action.Scope]reducer.State, len(t.Scopes)),
		clock: o.clock,
	}
	for scope, initial := range t.Scopes {
		doc.state[scope] = initial()
		doc.header.Revision[scope] = 0
	}
	return doc, nil
}

// Apply validates act if needed, reduces it against the state of its scope and
// appends the resulting operation. Structural validation failures return an
// error and record nothing. Domain rejections are recorded on the operation
// and leave the scope state unchanged.
func (d *Document) Apply(act action.Action) (Result, error) {
	if d == nil || d.docType == nil {
		return Result{}, ErrDocumentRequired
	}
	t := d.docType
	if !act.Validated() {
		validated, err := t.Actions.Restore(act)
		if err != nil {
			return Result{}, err
		}
		act = validated
	}

	scope := act.Scope
	current, ok := d.state[scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrScopeUnknown, scope)
	}
	index := d.log.Len(scope)
	next, reduction, err := t.reduce(scope, current, act, index)
	if err != nil {
		return Result{}, err
	}
	hash, err := encoding.ContentHash(next)
	if err != nil {
		return Result{}, fmt.Errorf("hash %s state: %w", scope, err)
	}

	entry := operation.Entry{
		Action:    act,
		Timestamp: d.clock(),
		Hash:      hash,
	}
	if reduction.Rejection != nil {
		entry.Error = &operation.Error{
			Code:    reduction.Rejection.Code,
			Message: reduction.Rejection.Message,
		}
	}
	log, op := d.log.Append(scope, entry)

	updated := &Document{
		docType: t,
		header:  d.header.clone(),
		state:   make(map[action.Scope]reducer.State, len(d.state)),
		log:     log,
		clock:   d.clock,
	}
	for s, st := range d.state {
		updated.state[s] = st
	}
	updated.state[scope] = next
	updated.header.Revision[scope] = op.Index + 1
	updated.header.LastModifiedAt = op.Timestamp

	return Result{Document: updated, Operation: op, Signals: reduction.Signals}, nil
}

// Type returns the document type.
func (d *Document) Type() *Type {
	return d.docType
}

// ID returns the document id.
func (d *Document) ID() string {
	return d.header.ID
}

// Header returns a copy of the document header.
func (d *Document) Header() Header {
	return d.header.clone()
}

// State returns a copy of the materialized state of scope.
func (d *Document) State(scope action.Scope) (reducer.State, bool) {
	st, ok := d.state[scope]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// StateHash returns the content hash of scope's current state.
func (d *Document) StateHash(scope action.Scope) (string, error) {
	st, ok := d.state[scope]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrScopeUnknown, scope)
	}
	return encoding.ContentHash(st)
}

// Operations returns a copy of the operations recorded in scope.
func (d *Document) Operations(scope action.Scope) []operation.Operation {
	return d.log.Operations(scope)
}

// Log returns the document's operation log.
func (d *Document) Log() operation.Log {
	return d.log
}

type snapshot struct {
	Header     Header                                 `json:"header"`
	State      map[action.Scope]reducer.State         `json:"state"`
	Operations map[action.Scope][]operation.Operation `json:"operations"`
}

// MarshalJSON encodes the header, state and full log of the document.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return nil, ErrDocumentRequired
	}
	return json.Marshal(snapshot{
		Header:     d.header,
		State:      d.state,
		Operations: d.log.Map(),
	})
}
