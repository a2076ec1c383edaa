package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dasos/peek/pkg/stream"
)

// defaultBuffer is the per-subscriber delivery buffer size.
const defaultBuffer = 64

// partition is the unit of mutual exclusion: one source's writes and its
// live feed. Holding mu across commit and publish keeps delivery order equal
// to commit order.
type partition struct {
	mu   sync.Mutex
	feed *stream.Broadcaster[Delivery]
}

// Store owns the fixed set of partitions, one per source slug. The set is
// created at construction and never changes at runtime.
type Store struct {
	storage Storage
	parts   map[string]*partition
	slugs   []string
	buffer  int
	log     *slog.Logger

	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithBufferSize sets the per-subscriber delivery buffer size.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a store over the given storage with one partition per slug.
func New(storage Storage, slugs []string, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		parts:   make(map[string]*partition, len(slugs)),
		slugs:   append([]string(nil), slugs...),
		buffer:  defaultBuffer,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, slug := range s.slugs {
		s.parts[slug] = &partition{feed: stream.NewBroadcaster[Delivery](s.buffer)}
	}
	return s
}

// Ingest persists an event into a source's partition and publishes the
// committed record to that partition's subscribers. An empty coalescing key
// always inserts a new event; a non-empty key updates the existing event
// with that key in place, keeping its id. Reports whether the write was a
// coalescing update.
func (s *Store) Ingest(ctx context.Context, slug string, ev Event) (Event, bool, error) {
	p, ok := s.parts[slug]
	if !ok {
		return Event{}, false, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ev.Source = slug
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.TS == "" {
		ev.TS = Now()
	}

	stored := ev
	var wasUpdate bool
	if ev.CoalesceKey == "" {
		if err := s.storage.Insert(ctx, ev); err != nil {
			return Event{}, false, err
		}
	} else {
		var err error
		stored, wasUpdate, err = s.storage.Upsert(ctx, ev)
		if err != nil {
			return Event{}, false, err
		}
	}

	p.feed.Publish(Delivery{Event: stored})
	return stored, wasUpdate, nil
}

// List returns one page of a single source's events, newest first.
func (s *Store) List(ctx context.Context, slug string, opts ListOptions) (Result, error) {
	if _, ok := s.parts[slug]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
	}
	return s.storage.List(ctx, []string{slug}, opts)
}

// ListAll returns one page of the merged view across partitions, re-sorted
// newest first. opts.Sources restricts the merge to a subset of slugs;
// unknown names simply match nothing.
func (s *Store) ListAll(ctx context.Context, opts ListOptions) (Result, error) {
	return s.storage.List(ctx, opts.Sources, opts)
}

// Get returns a single stored event.
func (s *Store) Get(ctx context.Context, slug, id string) (Event, error) {
	if _, ok := s.parts[slug]; !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
	}
	return s.storage.Get(ctx, slug, id)
}

// Delete removes an event and publishes a tombstone to the partition's
// subscribers. A miss is not an error; it reports false.
func (s *Store) Delete(ctx context.Context, slug, id string) (bool, error) {
	p, ok := s.parts[slug]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed, existed, err := s.storage.Delete(ctx, slug, id)
	if err != nil || !existed {
		return false, err
	}

	p.feed.Publish(Delivery{
		Event: Event{
			ID:          removed.ID,
			TS:          Now(),
			Source:      removed.Source,
			CoalesceKey: removed.CoalesceKey,
		},
		Deleted: true,
	})
	s.log.Debug("event deleted", slog.String("source", slug), slog.String("id", id))
	return true, nil
}

// Subscribe attaches a live subscriber to one source's feed. The
// subscription ends when ctx is cancelled or the subscriber is closed.
func (s *Store) Subscribe(ctx context.Context, slug string) (*stream.Subscriber[Delivery], error) {
	p, ok := s.parts[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
	}
	return p.feed.Subscribe(ctx), nil
}

// SubscribeAll attaches a merged live subscriber over every partition.
// Teardown (ctx cancel or Close on the handle) releases each per-partition
// subscription.
func (s *Store) SubscribeAll(ctx context.Context) *stream.Subscriber[Delivery] {
	subs := make([]*stream.Subscriber[Delivery], 0, len(s.slugs))
	for _, slug := range s.slugs {
		subs = append(subs, s.parts[slug].feed.Subscribe(ctx))
	}
	return stream.Merge(ctx, s.buffer, subs...)
}

// Slugs returns the fixed set of source slugs this store partitions by.
func (s *Store) Slugs() []string {
	return append([]string(nil), s.slugs...)
}

// Subscribers returns the current live subscriber count for a source, zero
// for unknown slugs.
func (s *Store) Subscribers(slug string) int {
	p, ok := s.parts[slug]
	if !ok {
		return 0
	}
	return p.feed.Len()
}

// Close shuts down every partition feed and the underlying storage.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, p := range s.parts {
			_ = p.feed.Close()
		}
		err = s.storage.Close()
	})
	return err
}
