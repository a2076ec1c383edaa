// Package store owns the durable, partitioned notification history and its
// live fan-out: one partition per source, each with its own write lock and
// subscriber feed.
//
// Writes go through Ingest, which deduplicates via the event's optional
// coalescing key (a non-empty key updates the existing event in place,
// keeping its id) and then publishes the committed record to that
// partition's subscribers in commit order. Reads (Get, List, ListAll) work
// against a snapshot of persisted state and never block on subscription
// activity.
//
// Two Storage implementations are provided: MemoryStorage for a
// non-durable process and SQLiteStorage for an embedded durable store, where
// coalescing is additionally enforced by a uniqueness constraint on
// (source, coalesce key).
package store
