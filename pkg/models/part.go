package models

import (
	"time"

	"github.com/google/uuid"
)

// PartStatus is the lifecycle state of a part.
type PartStatus string

const (
	PartStatusPending    PartStatus = "pending"
	PartStatusInProgress PartStatus = "in_progress"
	PartStatusCompleted  PartStatus = "completed"
)

// Part belongs to a Job and may have a parent part (assembly hierarchy).
// Metadata carries PMI extraction state written back by the CAD service.
type Part struct {
	ID           uuid.UUID              `json:"id"`
	TenantID     uuid.UUID              `json:"tenant_id"`
	JobID        uuid.UUID              `json:"job_id"`
	ParentPartID *uuid.UUID             `json:"parent_part_id,omitempty"`
	PartNumber   string                 `json:"part_number"`
	Material     string                 `json:"material"`
	// Thickness is in millimeters. Stored as text alongside material
	// because the pair forms the nesting compatibility key.
	Thickness    string                 `json:"thickness"`
	Quantity     int                    `json:"quantity"`
	Status       PartStatus             `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// AssemblyWarning describes incomplete children of a sub-assembly part.
// It is advisory: the caller may present it and proceed anyway.
type AssemblyWarning struct {
	PartID             uuid.UUID   `json:"part_id"`
	IncompleteChildren []ChildPart `json:"incomplete_children"`
}

// ChildPart is the summary of a child part in an assembly warning.
type ChildPart struct {
	ID         uuid.UUID  `json:"id"`
	PartNumber string     `json:"part_number"`
	Status     PartStatus `json:"status"`
}
