// Package notify provides change-event publication and subscription.
//
// Mutating services publish a ChangeEvent after each successful write;
// dependent readers subscribe per (table, filter) and re-run their read on
// every matching event. Re-running the full read instead of patching
// incrementally keeps subscribers trivially correct.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of row change that occurred.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChangeEvent describes one row change on a table.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Action   Action    `json:"action"`
	TenantID uuid.UUID `json:"tenant_id"`
	RowID    uuid.UUID `json:"row_id"`
	At       time.Time `json:"at"`
}

// Filter narrows a subscription. Zero values match everything: an empty
// filter subscribes to all changes on the table.
type Filter struct {
	TenantID uuid.UUID
	RowID    uuid.UUID
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(ev ChangeEvent) bool {
	if f.TenantID != uuid.Nil && f.TenantID != ev.TenantID {
		return false
	}
	if f.RowID != uuid.Nil && f.RowID != ev.RowID {
		return false
	}
	return true
}

// Handler is invoked for each matching change event. Handlers must not
// block; long work belongs in the subscriber's own goroutine.
type Handler func(ChangeEvent)

// Notifier delivers change events to subscribers, at least once.
type Notifier interface {
	// Publish delivers the event to current subscribers of its table.
	Publish(ctx context.Context, ev ChangeEvent) error

	// Subscribe registers a handler for changes on the table matching the
	// filter. The returned function unsubscribes; callers must invoke it
	// on teardown to avoid leaks.
	Subscribe(table string, filter Filter, fn Handler) (unsubscribe func())

	// Close stops delivery and releases resources.
	Close() error
}
