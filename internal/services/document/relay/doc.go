// Package relay delivers queued signal envelopes from a store's outbox to an
// external publisher with at-least-once semantics. Consumers deduplicate by
// the envelope key.
package relay
