package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusOnHold     JobStatus = "on_hold"
)

// Job is the top-level container of parts for a customer order.
type Job struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	JobNumber string     `json:"job_number"`
	Customer  string     `json:"customer"`
	Status    JobStatus  `json:"status"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
