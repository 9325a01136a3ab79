// Package eventstore is an append-only, in-memory event log keyed by
// aggregate ID.
//
// Records are immutable once appended. Each record carries a server-assigned
// UUID, a timestamp and a store-wide sequence number; the append order is the
// authoritative order of an aggregate's events. Payloads are opaque bytes,
// produced by a Codec.
package eventstore
