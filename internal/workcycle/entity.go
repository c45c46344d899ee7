package workcycle

import "time"

// WorkCycle groups tasks over a date range with a goal (a sprint).
type WorkCycle struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	StartDate string    `yaml:"start_date" json:"start_date"`
	EndDate   string    `yaml:"end_date" json:"end_date"`
	Goal      string    `yaml:"goal,omitempty" json:"goal,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Snapshot is the read-only progress view of a cycle.
type Snapshot struct {
	CycleID         string         `json:"cycle_id"`
	CycleName       string         `json:"cycle_name"`
	CompletedItems  int            `json:"completed_items"`
	TotalItems      int            `json:"total_items"`
	RemainingEffort int            `json:"remaining_effort"`
	TotalEffort     int            `json:"total_effort"`
	Blockers        []SnapshotTask `json:"blockers"`
}

type SnapshotTask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
}
