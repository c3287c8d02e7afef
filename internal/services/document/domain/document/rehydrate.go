package document

import (
	"errors"
	"fmt"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// Rehydrate rebuilds a document from persisted per-scope operations alone.
// Each scope is replayed from the type's default state and verified against
// the recorded hashes and error codes.
func Rehydrate(t *Type, logs map[action.Scope][]operation.Operation, opts ...Option) (*Document, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for scope := range logs {
		if _, ok := t.Scopes[scope]; !ok {
			return nil, integrityf(scope, 0, ErrScopeUnknown, "log contains undefined scope")
		}
	}
	log, err := operation.NewLog(logs)
	if err != nil {
		return nil, &IntegrityError{Reason: "invalid operation log", Err: err}
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		docType: t,
		header: Header{
			ID:           o.id,
			DocumentType: t.Name,
			Revision:     make(map[action.Scope]int, len(t.Scopes)),
		},
		state: make(map[action.Scope]reducer.State, len(t.Scopes)),
		log:   log,
		clock: o.clock,
	}

	var first, last time.Time
	for _, scope := range t.ScopeNames() {
		ops := log.Operations(scope)
		state, err := t.Replay(scope, ops, t.Scopes[scope]())
		if err != nil {
			var integrity *IntegrityError
			if errors.As(err, &integrity) {
				return nil, err
			}
			return nil, fmt.Errorf("replay %s: %w", scope, err)
		}
		doc.state[scope] = state
		doc.header.Revision[scope] = len(ops)
		for _, op := range ops {
			if first.IsZero() || op.Timestamp.Before(first) {
				first = op.Timestamp
			}
			if op.Timestamp.After(last) {
				last = op.Timestamp
			}
		}
	}

	createdAt := o.createdAt
	if createdAt.IsZero() {
		createdAt = first
	}
	if createdAt.IsZero() {
		createdAt = o.clock().UTC()
	}
	doc.header.CreatedAt = createdAt
	doc.header.LastModifiedAt = createdAt
	if last.After(createdAt) {
		doc.header.LastModifiedAt = last.UTC()
	}
	return doc, nil
}
