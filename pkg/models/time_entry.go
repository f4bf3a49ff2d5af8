package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeEntry is one open/closed timing record per (operation, operator).
// At most one entry per operator has EndedAt == nil at any instant; the
// store enforces this with a partial unique index and the timeclock service
// surfaces violations as conflicts.
type TimeEntry struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	OperationID     uuid.UUID  `json:"operation_id"`
	OperatorID      string     `json:"operator_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Open reports whether the entry is still running.
func (e *TimeEntry) Open() bool {
	return e.EndedAt == nil
}
