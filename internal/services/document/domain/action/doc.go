// Package action defines the action envelope and the validation gate every
// mutation crosses before it reaches a reducer.
//
// An action names a type from a document type's closed vocabulary, the scope
// whose log it targets, and an input payload. Inputs are normalized to NFC,
// validated against the registered Definition and stored in canonical JSON so
// the same action always produces the same bytes in the operation log.
package action
