// Package operation defines recorded operations and the scoped, append-only
// log a document keeps per scope.
package operation

import (
	"fmt"
	"sort"
	"time"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
)

// Error is a domain rejection recorded on an operation.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Operation is an action as recorded in a scope's log.
type Operation struct {
	Index     int           `json:"index"`
	Scope     action.Scope  `json:"scope"`
	Timestamp time.Time     `json:"timestamp"`
	Hash      string        `json:"hash"`
	Action    action.Action `json:"action"`
	Error     *Error        `json:"error,omitempty"`
}

// Rejected reports whether the operation recorded a domain rejection.
func (o Operation) Rejected() bool {
	return o.Error != nil
}

// ErrorCode returns the recorded rejection code, or the empty string.
func (o Operation) ErrorCode() string {
	if o.Error == nil {
		return ""
	}
	return o.Error.Code
}

// Entry is what a caller supplies when appending. The index is always
// assigned by the log.
type Entry struct {
	Action    action.Action
	Timestamp time.Time
	Hash      string
	Error     *Error
}

// Log is an immutable map of scope to ordered operations. Append returns a new
// log; existing values are never modified.
type Log struct {
	scopes map[action.Scope][]Operation
}

// NewLog builds a log from persisted operations, checking that every scope is
// indexed 0..n-1 with matching scope fields.
func NewLog(ops map[action.Scope][]Operation) (Log, error) {
	scopes := make(map[action.Scope][]Operation, len(ops))
	for scope, list := range ops {
		for i, op := range list {
			if op.Index != i {
				return Log{}, fmt.Errorf("scope %s: operation index gap: expected %d got %d", scope, i, op.Index)
			}
			if op.Scope != scope {
				return Log{}, fmt.Errorf("scope %s: operation %d recorded for scope %s", scope, i, op.Scope)
			}
		}
		scopes[scope] = append([]Operation(nil), list...)
	}
	return Log{scopes: scopes}, nil
}

// Append records entry at the end of scope and returns the new log and the
// stored operation. The receiver is left unchanged.
func (l Log) Append(scope action.Scope, entry Entry) (Log, Operation) {
	current := l.scopes[scope]
	op := Operation{
		Index:     len(current),
		Scope:     scope,
		Timestamp: entry.Timestamp.UTC(),
		Hash:      entry.Hash,
		Action:    entry.Action,
		Error:     cloneError(entry.Error),
	}

	next := make(map[action.Scope][]Operation, len(l.scopes)+1)
	for s, list := range l.scopes {
		next[s] = list
	}
	// The full slice expression forces a copy so logs never share a tail.
	next[scope] = append(current[:len(current):len(current)], op)
	return Log{scopes: next}, op
}

// Operations returns a copy of the operations recorded in scope.
func (l Log) Operations(scope action.Scope) []Operation {
	return append([]Operation(nil), l.scopes[scope]...)
}

// Len returns the number of operations in scope.
func (l Log) Len(scope action.Scope) int {
	return len(l.scopes[scope])
}

// Last returns the most recent operation in scope.
func (l Log) Last(scope action.Scope) (Operation, bool) {
	list := l.scopes[scope]
	if len(list) == 0 {
		return Operation{}, false
	}
	return list[len(list)-1], true
}

// Scopes returns the scopes with at least one operation, sorted.
func (l Log) Scopes() []action.Scope {
	scopes := make([]action.Scope, 0, len(l.scopes))
	for scope, list := range l.scopes {
		if len(list) > 0 {
			scopes = append(scopes, scope)
		}
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes
}

// Map returns a copy of the whole log keyed by scope.
func (l Log) Map() map[action.Scope][]Operation {
	out := make(map[action.Scope][]Operation, len(l.scopes))
	for scope, list := range l.scopes {
		out[scope] = append([]Operation(nil), list...)
	}
	return out
}

func cloneError(err *Error) *Error {
	if err == nil {
		return nil
	}
	cp := *err
	return &cp
}
