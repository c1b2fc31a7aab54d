package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeUntilCancel(t *testing.T) {
	n := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := n.Subscribe(ctx)
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Listeners())

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Eventually(t, func() bool { return n.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := n.Subscribe(ctx)
	ch2 := n.Subscribe(ctx)

	assert.Equal(t, uint64(1), n.Broadcast())

	for _, ch := range []<-chan uint64{ch1, ch2} {
		select {
		case gen := <-ch:
			assert.Equal(t, uint64(1), gen)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("subscriber did not receive broadcast")
		}
	}
}

func TestNotifier_SlowListenerSeesLatest(t *testing.T) {
	n := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Subscribe(ctx)
	n.Broadcast()
	n.Broadcast()
	n.Broadcast()

	assert.Equal(t, uint64(3), <-ch)
	assert.Equal(t, uint64(3), n.Generation())

	select {
	case gen := <-ch:
		t.Fatalf("unexpected extra generation %d", gen)
	default:
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			n.Subscribe(ctx)
			n.Broadcast()
			cancel()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(10), n.Generation())
	assert.Eventually(t, func() bool { return n.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}
