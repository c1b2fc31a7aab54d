// Package notifier fans reload signals out to connected browsers.
package notifier

import (
	"context"
	"sync"
)

// Notifier broadcasts the generation number of the latest lineage snapshot
// to every subscriber. A subscriber that falls behind only sees the newest
// generation.
type Notifier struct {
	mu         sync.RWMutex
	generation uint64
	listeners  map[chan uint64]struct{}
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan uint64]struct{}),
	}
}

// Subscribe returns a channel of generations that stays open until ctx is
// done.
func (n *Notifier) Subscribe(ctx context.Context) <-chan uint64 {
	ch := make(chan uint64, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners, ch)
		n.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Broadcast bumps the generation and sends it to all listeners without
// blocking.
func (n *Notifier) Broadcast() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.generation++
	for ch := range n.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- n.generation
	}
	return n.generation
}

// Generation returns the number of broadcasts so far.
func (n *Notifier) Generation() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.generation
}

// Listeners returns the number of open subscriptions.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
