package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/broadcast"
)

func TestMemoryBroadcaster(t *testing.T) {
	t.Run("delivers to all subscribers", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](4)
		defer b.Close()

		ctx := context.Background()
		sub1 := b.Subscribe(ctx)
		sub2 := b.Subscribe(ctx)

		require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "evicted"}))

		select {
		case msg := <-sub1.Receive(ctx):
			assert.Equal(t, "evicted", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("sub1 did not receive message")
		}

		select {
		case msg := <-sub2.Receive(ctx):
			assert.Equal(t, "evicted", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("sub2 did not receive message")
		}
	})

	t.Run("full buffer does not block publish", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[int](1)
		defer b.Close()

		ctx := context.Background()
		_ = b.Subscribe(ctx)

		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				_ = b.Broadcast(ctx, broadcast.Message[int]{Data: i})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked on a slow consumer")
		}
	})

	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](1)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		cancel()

		assert.Eventually(t, func() bool {
			select {
			case _, open := <-sub.Receive(context.Background()):
				return !open
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](1)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		sub := b.Subscribe(context.Background())
		_, open := <-sub.Receive(context.Background())
		assert.False(t, open)
	})
}
