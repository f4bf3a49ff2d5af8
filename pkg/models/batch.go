package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchType classifies how a batch is processed on the floor.
type BatchType string

const (
	BatchTypeLaserNesting BatchType = "laser_nesting"
	BatchTypeTube         BatchType = "tube_batch"
	BatchTypeSaw          BatchType = "saw_batch"
	BatchTypeFinishing    BatchType = "finishing_batch"
	BatchTypeGeneral      BatchType = "general"
)

// ValidBatchType reports whether t is a known batch type.
func ValidBatchType(t BatchType) bool {
	switch t {
	case BatchTypeLaserNesting, BatchTypeTube, BatchTypeSaw,
		BatchTypeFinishing, BatchTypeGeneral:
		return true
	}
	return false
}

// NestingSensitive reports whether the batch type requires all member
// operations to share material and thickness. Mixed-material nesting is
// physically invalid on sheet and tube stock.
func (t BatchType) NestingSensitive() bool {
	return t == BatchTypeLaserNesting || t == BatchTypeTube
}

// BatchStatus is the lifecycle state of a batch.
// Transitions: draft -> ready -> in_progress -> completed, with cancelled as
// a terminal escape from draft/ready.
type BatchStatus string

const (
	BatchStatusDraft      BatchStatus = "draft"
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// Batch groups operations for joint processing, e.g. nesting multiple
// parts' cut paths onto one sheet. All member operations share a cell and,
// for nesting-sensitive types, material and thickness.
type Batch struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	BatchNumber     string      `json:"batch_number"`
	BatchType       BatchType   `json:"batch_type"`
	Status          BatchStatus `json:"status"`
	CellID          uuid.UUID   `json:"cell_id"`
	Material        string      `json:"material,omitempty"`
	Thickness       string      `json:"thickness,omitempty"`
	OperationsCount int         `json:"operations_count"`
	// EfficiencyPercent is nesting metadata reported by the nesting tool.
	EfficiencyPercent *float64   `json:"efficiency_percent,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	StartedBy         string     `json:"started_by,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CompletionPercent returns the share of member operations completed, given
// counts gathered from the operations table. Informational only: completing
// a batch does not force-complete its members.
func CompletionPercent(completedOps, totalOps int) float64 {
	if totalOps == 0 {
		return 0
	}
	return float64(completedOps) / float64(totalOps) * 100
}

// MaterialGroup partitions groupable operations by nesting compatibility.
type MaterialGroup struct {
	Material   string      `json:"material"`
	Thickness  string      `json:"thickness"`
	Operations []Operation `json:"operations"`
}
