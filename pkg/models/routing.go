package models

import "github.com/google/uuid"

// RoutingEntry is a derived per-cell aggregation of a part's or job's
// operations, ordered by cell sequence.
type RoutingEntry struct {
	CellID              uuid.UUID `json:"cell_id"`
	CellName            string    `json:"cell_name"`
	CellColor           string    `json:"cell_color"`
	Sequence            int       `json:"sequence"`
	OperationCount      int       `json:"operation_count"`
	CompletedOperations int       `json:"completed_operations"`
}

// RoutingOperation is the typed row shape for routing aggregation queries:
// one operation joined to its cell and originating job. Operations without a
// cell carry a nil CellID and are excluded from aggregation.
type RoutingOperation struct {
	JobID        uuid.UUID
	PartID       uuid.UUID
	CellID       *uuid.UUID
	CellName     string
	CellColor    string
	CellSequence int
	Status       OperationStatus
}
