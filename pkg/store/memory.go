package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps events in per-source slices ordered newest-first.
// Suitable for a non-durable process and for tests.
type MemoryStorage struct {
	events map[string][]Event // source -> events, newest first
	mu     sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events: make(map[string][]Event),
	}
}

func (s *MemoryStorage) Insert(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.Source] = append([]Event{ev}, s.events[ev.Source]...)
	return nil
}

func (s *MemoryStorage) Upsert(ctx context.Context, ev Event) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.events[ev.Source]
	for i, existing := range list {
		if existing.CoalesceKey == ev.CoalesceKey {
			// Update in place keeps the original id; the refreshed timestamp
			// moves the event back to the top of the feed.
			ev.ID = existing.ID
			s.events[ev.Source] = append([]Event{ev}, append(list[:i:i], list[i+1:]...)...)
			return ev, true, nil
		}
	}
	s.events[ev.Source] = append([]Event{ev}, list...)
	return ev, false, nil
}

func (s *MemoryStorage) List(ctx context.Context, sources []string, opts ListOptions) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []Event
	if len(sources) == 1 {
		candidates = s.events[sources[0]]
	} else {
		for src, list := range s.events {
			if !sourceAllowed(src, sources) {
				continue
			}
			candidates = append(candidates, list...)
		}
		// Stable sort keeps each source's own storage order on timestamp ties.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].TS > candidates[j].TS
		})
	}

	p := newPage(opts)
	for _, ev := range candidates {
		if opts.Cursor != "" && ev.TS >= opts.Cursor {
			continue
		}
		if !p.add(ev) {
			break
		}
	}
	return p.result(), nil
}

func (s *MemoryStorage) Get(ctx context.Context, source, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events[source] {
		if ev.ID == id {
			return ev, nil
		}
	}
	return Event{}, ErrNotFound
}

func (s *MemoryStorage) Delete(ctx context.Context, source, id string) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.events[source]
	for i, ev := range list {
		if ev.ID == id {
			s.events[source] = append(list[:i:i], list[i+1:]...)
			return ev, true, nil
		}
	}
	return Event{}, false, nil
}

func (s *MemoryStorage) Close() error { return nil }

func sourceAllowed(src string, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, want := range sources {
		if src == want {
			return true
		}
	}
	return false
}
