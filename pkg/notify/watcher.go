package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher re-runs a read whenever a matching change event arrives. This is
// push-triggered polling: the event only signals staleness, the refresh
// function fetches authoritative state.
type Watcher struct {
	notifier Notifier
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	pending  bool
	unsubs   []func()
	refresh  func(context.Context)
	stopped  bool
	stopOnce sync.Once
}

// NewWatcher creates a watcher that invokes refresh on changes to any of
// the subscribed tables. Events arriving within the debounce window after a
// refresh are coalesced into a single trailing refresh.
func NewWatcher(notifier Notifier, debounce time.Duration, refresh func(context.Context), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		notifier: notifier,
		logger:   logger.Named("watcher"),
		debounce: debounce,
		refresh:  refresh,
	}
}

// Watch subscribes to a table with the given filter. Call Stop to remove
// all subscriptions.
func (w *Watcher) Watch(table string, filter Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	unsub := w.notifier.Subscribe(table, filter, func(ChangeEvent) {
		w.trigger()
	})
	w.unsubs = append(w.unsubs, unsub)
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	if w.pending || w.stopped {
		w.mu.Unlock()
		return
	}
	w.pending = true
	w.mu.Unlock()

	time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.pending = false
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		w.refresh(ctx)
	})
}

// Stop removes all subscriptions. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		unsubs := w.unsubs
		w.unsubs = nil
		w.mu.Unlock()

		for _, unsub := range unsubs {
			unsub()
		}
	})
}
