// Package stream provides the live fan-out primitive for partition
// subscribers: a broadcaster with independently buffered per-subscriber
// channels, and a merge multiplexer that combines several subscriptions into
// one feed.
//
// Publishing is always non-blocking. A subscriber whose buffer is full has
// that delivery dropped and is disconnected, so one stalled reader can never
// stall ingestion or other readers. Subscriptions created with a cancellable
// context are torn down automatically when the context is cancelled; Close is
// always safe to call as well.
//
//	feed := stream.NewBroadcaster[string](16)
//	defer feed.Close()
//
//	sub := feed.Subscribe(ctx)
//	feed.Publish("hello")
//	for v := range sub.C() {
//		fmt.Println(v)
//	}
package stream
