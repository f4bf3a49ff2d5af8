package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "changes:"

// RedisNotifier delivers change events through Redis pub/sub, one channel
// per table. Redis pub/sub is fire-and-forget; subscribers re-run full
// reads on each event, so a dropped message only delays a refresh until the
// next change.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger

	mu      sync.Mutex
	nextID  int
	subs    map[string]map[int]subscription
	pubsubs map[string]*redis.PubSub
	cancel  context.CancelFunc
	ctx     context.Context
}

// NewRedisNotifier creates a notifier backed by the given Redis client.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisNotifier{
		client:  client,
		logger:  logger.Named("redis-notifier"),
		subs:    make(map[string]map[int]subscription),
		pubsubs: make(map[string]*redis.PubSub),
		ctx:     ctx,
		cancel:  cancel,
	}
}

var _ Notifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, channelPrefix+ev.Table, payload).Err()
}

func (n *RedisNotifier) Subscribe(table string, filter Filter, fn Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[table] == nil {
		n.subs[table] = make(map[int]subscription)
		n.startReceiver(table)
	}
	id := n.nextID
	n.nextID++
	n.subs[table][id] = subscription{filter: filter, fn: fn}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[table], id)
		if len(n.subs[table]) == 0 {
			n.stopReceiver(table)
		}
	}
}

// stopReceiver closes the table's pub/sub channel once the last local
// subscription is gone; closing the channel ends the receiver goroutine.
// Caller holds n.mu.
func (n *RedisNotifier) stopReceiver(table string) {
	delete(n.subs, table)
	pubsub, ok := n.pubsubs[table]
	if !ok {
		return
	}
	delete(n.pubsubs, table)
	if err := pubsub.Close(); err != nil {
		n.logger.Warn("Failed to close pubsub channel",
			zap.String("table", table),
			zap.Error(err))
	}
}

// startReceiver opens the table's pub/sub channel and fans messages out to
// local subscriptions. Caller holds n.mu.
func (n *RedisNotifier) startReceiver(table string) {
	pubsub := n.client.Subscribe(n.ctx, channelPrefix+table)
	n.pubsubs[table] = pubsub

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-n.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					n.logger.Warn("Dropping malformed change event",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}
				n.dispatch(table, ev)
			}
		}
	}()
}

func (n *RedisNotifier) dispatch(table string, ev ChangeEvent) {
	n.mu.Lock()
	handlers := make([]Handler, 0, len(n.subs[table]))
	for _, sub := range n.subs[table] {
		if sub.filter.Matches(ev) {
			handlers = append(handlers, sub.fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (n *RedisNotifier) Close() error {
	n.cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	for table, pubsub := range n.pubsubs {
		if err := pubsub.Close(); err != nil {
			n.logger.Warn("Failed to close pubsub channel",
				zap.String("table", table),
				zap.Error(err))
		}
	}
	n.pubsubs = make(map[string]*redis.PubSub)
	n.subs = make(map[string]map[int]subscription)
	return nil
}
