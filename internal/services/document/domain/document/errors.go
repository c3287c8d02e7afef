package document

import (
	"errors"
	"fmt"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
)

var (
	// ErrTypeRequired indicates a missing document type.
	ErrTypeRequired = errors.New("document type is required")
	// ErrTypeUnknown indicates a document type that is not registered.
	ErrTypeUnknown = errors.New("document type is not registered")
	// ErrScopeUnknown indicates an action or operation for a scope the type does not define.
	ErrScopeUnknown = errors.New("scope is not defined for document type")
	// ErrDocumentRequired indicates a nil document handle.
	ErrDocumentRequired = errors.New("document is required")
	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("document integrity violation")
)

// IntegrityError reports a log that cannot be trusted: a hash or error code
// that diverges on replay, an index gap, or an action the reducer does not
// handle. It is never recoverable by the caller.
type IntegrityError struct {
	Scope  action.Scope
	Index  int
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("integrity violation in scope %s at index %d: %s", e.Scope, e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIntegrity) match any integrity error.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func integrityf(scope action.Scope, index int, cause error, format string, args ...any) *IntegrityError {
	return &IntegrityError{Scope: scope, Index: index, Reason: fmt.Sprintf(format, args...), Err: cause}
}
