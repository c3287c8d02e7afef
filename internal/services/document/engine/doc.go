// Package engine is the stateful seam between the document domain and the
// layers that serve it: it creates, loads, applies actions to and verifies
// documents against a storage.Store.
//
// Writes to one document are serialized in process; every accepted or
// rejected operation is persisted, together with the signals it emitted,
// before Apply returns.
package engine
