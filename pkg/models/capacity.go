package models

import "github.com/google/uuid"

// CellMetrics is a derived per-cell capacity snapshot. It is recomputed on
// demand and on change events, never persisted.
type CellMetrics struct {
	CellID   uuid.UUID `json:"cell_id"`
	CellName string    `json:"cell_name"`
	WIPCount int       `json:"wip_count"`
	WIPLimit int       `json:"wip_limit"`
	// Utilization is WIPCount/WIPLimit. When no limit is configured it is
	// reported as 0, never a division error.
	Utilization       float64 `json:"utilization"`
	AvgWaitMinutes    float64 `json:"avg_wait_minutes"`
	ThroughputPerHour float64 `json:"throughput_per_hour"`
}

// AtCapacity reports whether the cell has reached its WIP ceiling.
// Cells without a configured limit are never at capacity.
func (m *CellMetrics) AtCapacity() bool {
	return m.WIPLimit > 0 && m.WIPCount >= m.WIPLimit
}

// NextCellCapacity reports available capacity at the next cell in the
// routing sequence. Advisory: the engine warns before moving work into a
// saturated cell but never blocks the move.
type NextCellCapacity struct {
	// HasNext is false when the current cell is last in the sequence.
	HasNext  bool      `json:"has_next"`
	CellID   uuid.UUID `json:"cell_id,omitempty"`
	CellName string    `json:"cell_name,omitempty"`
	WIPCount int       `json:"wip_count"`
	WIPLimit int       `json:"wip_limit"`
	// Unlimited marks a next cell with no WIP ceiling configured;
	// AvailableCapacity and AtCapacity carry no signal then.
	Unlimited         bool `json:"unlimited"`
	AvailableCapacity int  `json:"available_capacity"`
	AtCapacity        bool `json:"at_capacity"`
}
