package meeting

import "time"

type Meeting struct {
	ID             string    `yaml:"id" json:"id"`
	Title          string    `yaml:"title" json:"title"`
	Date           string    `yaml:"date" json:"date"`
	SummaryMinutes string    `yaml:"summary_minutes,omitempty" json:"summary_minutes,omitempty"`
	ProcessedByID  string    `yaml:"processed_by_id,omitempty" json:"processed_by_id,omitempty"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
}
