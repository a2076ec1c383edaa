package store

import "context"

// Storage is the persistence layer behind partitions. Implementations must
// be safe for concurrent use; ordering and coalescing guarantees are stated
// per method.
type Storage interface {
	// Insert persists a new event unconditionally.
	Insert(ctx context.Context, ev Event) error

	// Upsert persists an event keyed by (source, coalesce key): when an
	// event with the same non-empty key already exists in the source it is
	// overwritten in place, keeping its original ID, and wasUpdate is true.
	// Returns the event as stored.
	Upsert(ctx context.Context, ev Event) (stored Event, wasUpdate bool, err error)

	// List returns one page of events newest-first, filtered per opts. A nil
	// or empty sources slice means all sources.
	List(ctx context.Context, sources []string, opts ListOptions) (Result, error)

	// Get returns a single event or ErrNotFound.
	Get(ctx context.Context, source, id string) (Event, error)

	// Delete removes an event, reporting whether it existed and returning
	// the removed event when it did.
	Delete(ctx context.Context, source, id string) (Event, bool, error)

	// Close releases storage resources.
	Close() error
}
