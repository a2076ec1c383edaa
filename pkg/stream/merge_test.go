package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_ForwardsFromAllInputs(t *testing.T) {
	t.Parallel()

	b1 := NewBroadcaster[string](4)
	b2 := NewBroadcaster[string](4)
	defer b1.Close()
	defer b2.Close()

	out := Merge(context.Background(), 8, b1.Subscribe(context.Background()), b2.Subscribe(context.Background()))
	defer out.Close()

	b1.Publish("a")
	b2.Publish("b")

	got := map[string]bool{recv(t, out): true, recv(t, out): true}
	assert.True(t, got["a"])
	assert.True(t, got["b"])
}

func TestMerge_PreservesPerInputOrder(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int](16)
	defer b.Close()

	out := Merge(context.Background(), 16, b.Subscribe(context.Background()))
	defer out.Close()

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, recv(t, out))
	}
}

func TestMerge_ContextCancelTearsDownInputs(t *testing.T) {
	t.Parallel()

	b1 := NewBroadcaster[int](4)
	b2 := NewBroadcaster[int](4)
	defer b1.Close()
	defer b2.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := Merge(ctx, 8, b1.Subscribe(ctx), b2.Subscribe(ctx))

	require.Equal(t, 1, b1.Len())
	require.Equal(t, 1, b2.Len())

	cancel()
	waitLen(t, b1, 0)
	waitLen(t, b2, 0)
	expectClosed(t, out)
}

func TestMerge_OutputCloseTearsDownInputs(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int](4)
	defer b.Close()

	in := b.Subscribe(context.Background())
	out := Merge(context.Background(), 8, in)

	require.NoError(t, out.Close())
	waitLen(t, b, 0)

	select {
	case <-in.done:
	case <-time.After(2 * time.Second):
		t.Fatal("input subscription not closed on output close")
	}
}

func TestMerge_MidDeliveryTeardown(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int](64)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := Merge(ctx, 64, b.Subscribe(ctx))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	recv(t, out) // at least one delivery in flight
	cancel()

	<-done
	waitLen(t, b, 0)

	// Output drains whatever was forwarded, then closes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("merged output never closed after teardown")
		}
	}
}
