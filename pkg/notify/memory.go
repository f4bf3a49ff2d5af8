package notify

import (
	"context"
	"sync"
)

// MemoryNotifier is an in-process Notifier. It backs single-node
// deployments and tests; multi-node deployments use the Redis notifier.
type MemoryNotifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]subscription
	closed bool
}

type subscription struct {
	filter Filter
	fn     Handler
}

// NewMemoryNotifier creates an in-process notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{
		subs: make(map[string]map[int]subscription),
	}
}

var _ Notifier = (*MemoryNotifier)(nil)

// Publish invokes matching handlers synchronously, in subscription order.
func (n *MemoryNotifier) Publish(_ context.Context, ev ChangeEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return nil
	}
	for _, sub := range n.subs[ev.Table] {
		if sub.filter.Matches(ev) {
			sub.fn(ev)
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(table string, filter Filter, fn Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[table] == nil {
		n.subs[table] = make(map[int]subscription)
	}
	id := n.nextID
	n.nextID++
	n.subs[table][id] = subscription{filter: filter, fn: fn}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[table], id)
	}
}

func (n *MemoryNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.subs = make(map[string]map[int]subscription)
	return nil
}
