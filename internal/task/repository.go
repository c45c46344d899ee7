package task

import "context"

// Filter narrows List results. Zero values match everything.
type Filter struct {
	AssigneeID  string
	MeetingID   string
	WorkCycleID string
	BundleID    string
	Status      Status
	Approved    *bool
	Blocked     *bool
}

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, f Filter) ([]*Task, error)
	// Update persists t only if the stored Version still matches
	// t.Version, then bumps it. A mismatch yields an Aborted error.
	Update(ctx context.Context, t *Task) error
}
