package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationStatus is the lifecycle state of an operation.
type OperationStatus string

const (
	OperationStatusNotStarted OperationStatus = "not_started"
	OperationStatusInProgress OperationStatus = "in_progress"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusOnHold     OperationStatus = "on_hold"
)

// ValidOperationStatus reports whether s is a known operation status.
func ValidOperationStatus(s OperationStatus) bool {
	switch s {
	case OperationStatusNotStarted, OperationStatusInProgress,
		OperationStatusCompleted, OperationStatusOnHold:
		return true
	}
	return false
}

// Operation is a unit of work on a part, assigned to a cell. Status advances
// only through explicit start/complete actions; ActualMinutes accumulates
// from closed time entries.
type Operation struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	PartID           uuid.UUID       `json:"part_id"`
	CellID           *uuid.UUID      `json:"cell_id,omitempty"`
	Description      string          `json:"description"`
	Status           OperationStatus `json:"status"`
	Sequence         int             `json:"sequence"`
	EstimatedMinutes int             `json:"estimated_minutes"`
	ActualMinutes    int             `json:"actual_minutes"`
	AssignedOperator string          `json:"assigned_operator,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
