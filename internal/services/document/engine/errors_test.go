package engine

import (
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/powerhouse-inc/contributor-billing/internal/platform/errors"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/operation"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"validation", &action.ValidationError{Type: "ADD", Fields: []action.FieldError{{Field: "id", Message: "is required"}}}, apperrors.CodeActionInvalid},
		{"unknown action", fmt.Errorf("%w: NOPE", action.ErrTypeUnknown), apperrors.CodeActionTypeUnknown},
		{"scope not allowed", action.ErrScopeNotAllowed, apperrors.CodeScopeUnknown},
		{"scope unknown", document.ErrScopeUnknown, apperrors.CodeScopeUnknown},
		{"document type", document.ErrTypeUnknown, apperrors.CodeDocumentTypeUnknown},
		{"integrity", &document.IntegrityError{Scope: action.ScopeGlobal, Index: 3, Reason: "hash mismatch"}, apperrors.CodeIntegrityViolation},
		{"not found", fmt.Errorf("get: %w", storage.ErrNotFound), apperrors.CodeNotFound},
		{"conflict", storage.ConflictError("doc", action.ScopeGlobal, 1, 2), apperrors.CodeConflict},
		{"other", errors.New("boom"), apperrors.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.want {
				t.Fatalf("code = %s, want %s", got.Code, tt.want)
			}
			if !errors.Is(got.Cause, tt.err) {
				t.Fatalf("classified error lost its cause")
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestClassifyValidationViolations(t *testing.T) {
	err := &action.ValidationError{Type: "ADD", Fields: []action.FieldError{
		{Field: "id", Message: "is required"},
		{Field: "name", Message: "must be at most 64 characters"},
	}}
	got := Classify(err)
	if len(got.Violations) != 2 || got.Violations[1].Field != "name" {
		t.Fatalf("violations = %+v", got.Violations)
	}
	if got.Metadata["action_type"] != "ADD" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
}

func TestRejectionError(t *testing.T) {
	if RejectionError(operation.Operation{}) != nil {
		t.Fatal("expected nil for accepted operation")
	}
	op := operation.Operation{
		Index:  4,
		Scope:  action.ScopeGlobal,
		Action: action.Action{Type: "ADD"},
		Error:  &operation.Error{Code: "DUPLICATE", Message: "already exists"},
	}
	got := RejectionError(op)
	if got.Code != apperrors.CodeActionRejected || got.Metadata["rejection_code"] != "DUPLICATE" || got.Metadata["index"] != "4" {
		t.Fatalf("rejection = %+v", got)
	}
}

func TestIsNonRetryable(t *testing.T) {
	if IsNonRetryable(errors.New("plain")) {
		t.Fatal("plain error should be retryable")
	}
	wrapped := fmt.Errorf("outer: %w", wrapNonRetryable(errors.New("inner")))
	if !IsNonRetryable(wrapped) {
		t.Fatal("expected non-retryable")
	}
	if wrapNonRetryable(nil) != nil {
		t.Fatal("expected nil")
	}
}
