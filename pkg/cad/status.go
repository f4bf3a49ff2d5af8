package cad

import (
	"encoding/json"
)

// ProcessingState is the PMI extraction state reported through part metadata.
type ProcessingState string

const (
	StatePending    ProcessingState = "pending"
	StateProcessing ProcessingState = "processing"
	StateComplete   ProcessingState = "complete"
	StateError      ProcessingState = "error"
)

// Status is the typed view of the pmi_* fields the CAD service writes into
// a part's metadata. Raw metadata maps stop at this boundary; business
// logic only sees this struct.
type Status struct {
	State    ProcessingState `json:"pmi_status"`
	Progress int             `json:"pmi_progress"` // 0-100
	Stage    string          `json:"pmi_stage,omitempty"`
	Error    string          `json:"pmi_error,omitempty"`
}

// Known reports whether the status carries a recognized state.
func (s Status) Known() bool {
	switch s.State {
	case StatePending, StateProcessing, StateComplete, StateError:
		return true
	}
	return false
}

// Done reports whether extraction reached a terminal state.
func (s Status) Done() bool {
	return s.State == StateComplete || s.State == StateError
}

// StatusFromMetadata extracts the PMI status from a part metadata map.
// Returns ok=false when the metadata carries no PMI fields at all.
func StatusFromMetadata(metadata map[string]interface{}) (Status, bool) {
	if metadata == nil {
		return Status{}, false
	}
	if _, present := metadata["pmi_status"]; !present {
		return Status{}, false
	}

	// Round-trip through JSON to coerce the loosely-typed map into the
	// typed DTO; numbers in metadata may be float64 or json.Number.
	raw, err := json.Marshal(metadata)
	if err != nil {
		return Status{}, false
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return Status{}, false
	}
	return s, true
}
