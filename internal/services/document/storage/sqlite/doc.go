// Package sqlite persists document journals and the signal outbox in an
// embedded SQLite database (modernc.org/sqlite, no cgo).
//
// Operations and the envelopes of the signals they emitted are written in one
// transaction. The outbox is drained with lease-based claims: a relay marks due
// rows as processing, and a row whose lease expired is claimable again, which
// gives at-least-once delivery across relay crashes.
package sqlite
