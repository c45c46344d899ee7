package rollover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/user"
	"github.com/taskdeck/taskdeck/internal/workflow"
)

// Scheduler applies the end-of-day rollover: every incomplete task of a user
// moves to the next day, at most once per local calendar day per user.
type Scheduler struct {
	engine  *workflow.Engine
	markers MarkerRepository
	users   user.Repository
	policy  *config.PolicyEnv
	now     func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewScheduler(engine *workflow.Engine, markers MarkerRepository, users user.Repository, policy *config.PolicyEnv) *Scheduler {
	return &Scheduler{
		engine:    engine,
		markers:   markers,
		users:     users,
		policy:    policy,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// WithClock replaces the scheduler's wall clock. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// PlanTomorrow rolls the user's incomplete tasks over to tomorrow. Repeat
// invocations on the same calendar day are no-ops: applied is false and no
// dates move twice. The marker write is staged into the shift's
// all-or-nothing unit, so a marker storage fault leaves the dates unshifted
// and the day still retryable.
func (s *Scheduler) PlanTomorrow(ctx context.Context, userID string) ([]*task.Task, bool, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	now := s.now()
	today := now.Format(task.DateLayout)

	m, err := s.markers.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if m != nil && m.LastAppliedDay == today {
		return nil, false, nil
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	shifted, err := s.engine.ShiftDueDates(ctx, userID, day, func(ctx context.Context) error {
		return s.markers.Put(ctx, &Marker{
			UserID:         userID,
			LastAppliedDay: today,
			UpdatedAt:      now,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return shifted, true, nil
}

// Run executes the rollover for every known user once per day after the
// configured local hour. Disabled when the hour is negative; users can still
// trigger their own rollover through the API.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.policy.RolloverHour < 0 {
		slog.Info("rollover scheduler disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	slog.Info("rollover scheduler started", "hour", s.policy.RolloverHour)
	for {
		select {
		case <-ctx.Done():
			slog.Info("rollover scheduler stopped")
			return nil
		case <-ticker.C:
			if s.now().Hour() < s.policy.RolloverHour {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	users, err := s.users.List(ctx)
	if err != nil {
		slog.Error("rollover: failed to list users", "error", err)
		return
	}
	for _, u := range users {
		shifted, applied, err := s.PlanTomorrow(ctx, u.ID)
		if err != nil {
			slog.Error("rollover: failed for user", "user_id", u.ID, "error", err)
			continue
		}
		if applied {
			slog.Info("rollover applied", "user_id", u.ID, "tasks", len(shifted))
		}
	}
}
