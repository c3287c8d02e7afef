// Package errors provides structured error handling shared by the document
// runtime and the layers that surface its failures.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Action errors
	CodeActionInvalid     Code = "ACTION_INVALID"
	CodeActionRejected    Code = "ACTION_REJECTED"
	CodeActionTypeUnknown Code = "ACTION_TYPE_UNKNOWN"
	CodeScopeUnknown      Code = "SCOPE_UNKNOWN"

	// Document errors
	CodeDocumentTypeUnknown Code = "DOCUMENT_TYPE_UNKNOWN"
	CodeIntegrityViolation  Code = "INTEGRITY_VIOLATION"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeConflict      Code = "CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeActionInvalid,
		CodeActionTypeUnknown,
		CodeScopeUnknown,
		CodeDocumentTypeUnknown:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActionRejected:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeAlreadyExists:
		return codes.AlreadyExists

	// Aborted - concurrent writer won the append
	case CodeConflict:
		return codes.Aborted

	// DataLoss - the operation log no longer replays to its recorded hashes
	case CodeIntegrityViolation:
		return codes.DataLoss

	default:
		return codes.Internal
	}
}
