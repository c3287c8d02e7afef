package engine

import (
	"errors"
	"strconv"

	apperrors "github.com/powerhouse-inc/contributor-billing/internal/platform/errors"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
)

var (
	// ErrTypesRequired indicates a handler without a document type registry.
	ErrTypesRequired = errors.New("document type registry is required")
	// ErrStoreRequired indicates a handler without a store.
	ErrStoreRequired = errors.New("document store is required")
)

// nonRetryableError marks failures a caller must not retry, such as a log
// that no longer replays to its recorded hashes.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable returns true from IsNonRetryable checks.
func (e *nonRetryableError) NonRetryable() bool { return true }

func wrapNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable returns true when the error (or any error in its chain)
// signals that the operation must not be retried.
func IsNonRetryable(err error) bool {
	var target interface{ NonRetryable() bool }
	if errors.As(err, &target) {
		return target.NonRetryable()
	}
	return false
}

// Classify converts a runtime error into the structured platform error the
// API layer returns to clients. It returns nil for a nil error.
func Classify(err error) *apperrors.Error {
	if err == nil {
		return nil
	}

	var validation *action.ValidationError
	if errors.As(err, &validation) {
		classified := apperrors.Wrap(apperrors.CodeActionInvalid, err.Error(), err)
		classified.Metadata = map[string]string{"action_type": string(validation.Type)}
		for _, field := range validation.Fields {
			classified.Violations = append(classified.Violations, apperrors.FieldViolation{
				Field:       field.Field,
				Description: field.Message,
			})
		}
		return classified
	}

	var integrity *document.IntegrityError
	if errors.As(err, &integrity) {
		classified := apperrors.Wrap(apperrors.CodeIntegrityViolation, err.Error(), err)
		classified.Metadata = map[string]string{
			"scope": string(integrity.Scope),
			"index": strconv.Itoa(integrity.Index),
		}
		return classified
	}

	switch {
	case errors.Is(err, action.ErrTypeUnknown):
		return apperrors.Wrap(apperrors.CodeActionTypeUnknown, err.Error(), err)
	case errors.Is(err, action.ErrTypeRequired):
		return apperrors.Wrap(apperrors.CodeActionInvalid, err.Error(), err)
	case errors.Is(err, action.ErrScopeNotAllowed), errors.Is(err, document.ErrScopeUnknown):
		return apperrors.Wrap(apperrors.CodeScopeUnknown, err.Error(), err)
	case errors.Is(err, document.ErrTypeUnknown), errors.Is(err, document.ErrTypeRequired):
		return apperrors.Wrap(apperrors.CodeDocumentTypeUnknown, err.Error(), err)
	}

	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		return apperrors.Wrap(code, err.Error(), err)
	}
	return apperrors.Wrap(apperrors.CodeUnknown, err.Error(), err)
}

// RejectionError describes a recorded domain rejection as a platform error.
// It returns nil for an accepted operation.
func RejectionError(op operation.Operation) *apperrors.Error {
	if op.Error == nil {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeActionRejected, op.Error.Message, map[string]string{
		"rejection_code": op.Error.Code,
		"action_type":    string(op.Action.Type),
		"scope":          string(op.Scope),
		"index":          strconv.Itoa(op.Index),
	})
}
