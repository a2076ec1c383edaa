package stream

import (
	"context"
	"sync"
)

// Subscriber is one live delivery channel attached to a Broadcaster. Values
// arrive on C in publish order; the channel is closed when the subscription
// ends. All methods are safe for concurrent use.
type Subscriber[T any] struct {
	ch     chan T
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func newSubscriber[T any](buffer int) *Subscriber[T] {
	return &Subscriber[T]{
		ch:   make(chan T, max(buffer, 1)),
		done: make(chan struct{}),
	}
}

// C returns the delivery channel. It is closed once the subscription is
// terminated; buffered deliveries remain readable until drained.
func (s *Subscriber[T]) C() <-chan T {
	return s.ch
}

// Close terminates the subscription. It is idempotent.
func (s *Subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
		close(s.ch)
	}
	return nil
}

// send enqueues without blocking. It reports false when the subscriber is
// closed or its buffer is full.
func (s *Subscriber[T]) send(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}

// Broadcaster fans values out to any number of subscribers, each with its own
// buffered channel. All methods are safe for concurrent use.
type Broadcaster[T any] struct {
	subs      map[*Subscriber[T]]struct{}
	buffer    int
	closed    bool
	mu        sync.RWMutex
	cleanupWg sync.WaitGroup
}

// NewBroadcaster creates a broadcaster whose subscribers each get a channel
// buffered to the given size (minimum 1). A zero buffer would make every
// send blocking and defeat the non-blocking publish contract.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[*Subscriber[T]]struct{}),
		buffer: max(buffer, 1),
	}
}

// Subscribe registers a new subscriber. When ctx is cancellable the
// subscription is removed automatically on cancellation. Subscribing to a
// closed broadcaster yields an already-closed subscriber.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](b.buffer)
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subs[sub] = struct{}{}

	// One watcher per subscription guarantees the subscriber set shrinks on
	// either cancellation or an explicit Close, not only on the next publish.
	b.cleanupWg.Add(1)
	go func() {
		defer b.cleanupWg.Done()
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		b.remove(sub)
	}()
	return sub
}

// Unsubscribe detaches and closes a subscriber. Publishing continues for the
// remaining subscribers.
func (b *Broadcaster[T]) Unsubscribe(sub *Subscriber[T]) {
	b.remove(sub)
}

// Publish delivers v to every current subscriber without blocking. A
// subscriber that cannot accept the delivery (full buffer or already closed)
// is disconnected; its loss never affects the publisher or other
// subscribers.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		if !sub.send(v) {
			// Detach asynchronously; removal needs the write lock held by
			// nobody while this read-locked publish is in flight.
			go b.remove(sub)
		}
	}
}

// Len returns the current number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close terminates every subscription and rejects future ones. It is
// idempotent.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		_ = sub.Close()
	}
	clear(b.subs)
	b.mu.Unlock()

	// Let context watchers observe sub.done before returning so none linger.
	b.cleanupWg.Wait()
	return nil
}

func (b *Broadcaster[T]) remove(sub *Subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, sub)
	_ = sub.Close()
}
