// Package signal defines the side-effect notifications reducers emit for
// accepted operations.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/encoding"
)

// ErrTypeRequired indicates a signal without a type.
var ErrTypeRequired = errors.New("signal type is required")

// Signal is a notification produced while applying an operation.
type Signal struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a signal with a canonical JSON payload.
func New(signalType string, payload any) (Signal, error) {
	signalType = strings.TrimSpace(signalType)
	if signalType == "" {
		return Signal{}, ErrTypeRequired
	}
	if payload == nil {
		return Signal{Type: signalType}, nil
	}
	data, err := encoding.CanonicalJSON(payload)
	if err != nil {
		return Signal{}, fmt.Errorf("encode %s payload: %w", signalType, err)
	}
	return Signal{Type: signalType, Payload: data}, nil
}

// MustNew is New for fixed payloads known to encode. It panics otherwise.
func MustNew(signalType string, payload any) Signal {
	s, err := New(signalType, payload)
	if err != nil {
		panic(err)
	}
	return s
}

// Envelope is a signal queued for delivery outside the runtime. It identifies
// the operation that produced it so consumers can deduplicate redeliveries.
type Envelope struct {
	ID          string       `json:"id"`
	DocumentID  string       `json:"documentId"`
	Scope       action.Scope `json:"scope"`
	Index       int          `json:"index"`
	Position    int          `json:"position"`
	Signal      Signal       `json:"signal"`
	Attempts    int          `json:"attempts"`
	EnqueuedAt  time.Time    `json:"enqueuedAt"`
	NextAttempt time.Time    `json:"nextAttempt"`
	LastError   string       `json:"lastError,omitempty"`
}

// Key returns the idempotency key for the envelope's signal.
func (e Envelope) Key() string {
	return fmt.Sprintf("%s:%s:%d:%d", e.DocumentID, e.Scope, e.Index, e.Position)
}

// Wrap builds the envelopes for signals emitted by one operation.
func Wrap(documentID string, scope action.Scope, index int, signals []Signal, now time.Time) []Envelope {
	if len(signals) == 0 {
		return nil
	}
	out := make([]Envelope, 0, len(signals))
	for i, s := range signals {
		env := Envelope{
			DocumentID:  documentID,
			Scope:       scope,
			Index:       index,
			Position:    i,
			Signal:      s,
			EnqueuedAt:  now.UTC(),
			NextAttempt: now.UTC(),
		}
		env.ID = env.Key()
		out = append(out, env)
	}
	return out
}
