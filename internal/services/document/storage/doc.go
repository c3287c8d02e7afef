// Package storage defines the persistence contracts for document operation
// logs and the signal outbox.
//
// Adapters (memory, sqlite, bbolt, postgres) persist each operation together
// with the envelopes of the signals it emitted in one atomic write, so a
// signal is never delivered for an operation that was not stored and never
// lost for one that was.
package storage
