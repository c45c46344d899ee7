package rollover

import (
	"context"
	"time"
)

// Marker records, per user, the last local calendar day the rollover was
// applied. This is the authoritative idempotence guard; the client's
// wall-clock check is advisory only.
type Marker struct {
	UserID         string    `yaml:"user_id"`
	LastAppliedDay string    `yaml:"last_applied_day"`
	UpdatedAt      time.Time `yaml:"updated_at"`
}

type MarkerRepository interface {
	// Get returns the marker for userID, or nil when the user has never
	// rolled over.
	Get(ctx context.Context, userID string) (*Marker, error)
	Put(ctx context.Context, m *Marker) error
}
