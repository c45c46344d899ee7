package rollover_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/rollover"
	rolloverrepo "github.com/taskdeck/taskdeck/internal/rollover/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/task"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	userrepo "github.com/taskdeck/taskdeck/internal/user/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

var testAdmin = auth.Identity{UserID: "u-admin", Username: "admin", Role: auth.RoleAdmin}

func newTestScheduler(t *testing.T, now func() time.Time) (*rollover.Scheduler, task.Repository, *workflow.Engine) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	tasks := taskrepo.NewYAMLRepository(store)
	engine := workflow.NewEngine(tasks, eventbus.New(), &config.PolicyEnv{}).WithClock(now)
	scheduler := rollover.NewScheduler(engine, rolloverrepo.NewYAMLRepository(store), userrepo.NewYAMLRepository(store), &config.PolicyEnv{RolloverHour: -1}).WithClock(now)
	return scheduler, tasks, engine
}

func TestPlanTomorrowShiftsOncePerDay(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	scheduler, tasks, engine := newTestScheduler(t, func() time.Time { return now })
	ctx := context.Background()

	created, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "overdue work",
		AssigneeID:  "u1",
		DueDate:     "2025-06-10",
	})
	require.NoError(t, err)

	shifted, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, shifted, 1)
	assert.Equal(t, "2025-06-11", shifted[0].DueDate)

	// The same day again must not move dates twice.
	again, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, again)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", got.DueDate)
}

func TestPlanTomorrowNextDayShiftsAgain(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	scheduler, tasks, engine := newTestScheduler(t, func() time.Time { return now })
	ctx := context.Background()

	created, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "rolling work",
		AssigneeID:  "u1",
		DueDate:     "2025-06-10",
	})
	require.NoError(t, err)

	_, _, err = scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)

	now = now.AddDate(0, 0, 1)
	shifted, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, shifted, 1)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-12", got.DueDate)
}

func TestPlanTomorrowAssignsUndated(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	scheduler, _, engine := newTestScheduler(t, func() time.Time { return now })
	ctx := context.Background()

	_, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "no date yet",
		AssigneeID:  "u1",
	})
	require.NoError(t, err)

	shifted, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, shifted, 1)
	assert.Equal(t, "2025-06-11", shifted[0].DueDate)
}

func TestPlanTomorrowSkipsFinishedWork(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	scheduler, tasks, engine := newTestScheduler(t, func() time.Time { return now })
	ctx := context.Background()

	created, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "shipped",
		AssigneeID:  "u1",
		DueDate:     "2025-06-10",
	})
	require.NoError(t, err)
	_, err = engine.Complete(ctx, testAdmin, created.ID)
	require.NoError(t, err)

	shifted, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, shifted)

	// Nothing moved, but the run itself counts and the marker is written.
	assert.True(t, applied)
	_, applied, err = scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", got.DueDate)
}

type flakyMarkers struct {
	rollover.MarkerRepository
	failPut bool
}

func (f *flakyMarkers) Put(ctx context.Context, m *rollover.Marker) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.MarkerRepository.Put(ctx, m)
}

func TestPlanTomorrowMarkerWriteFailure(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	tasks := taskrepo.NewYAMLRepository(store)
	engine := workflow.NewEngine(tasks, eventbus.New(), &config.PolicyEnv{}).WithClock(clock)
	markers := &flakyMarkers{MarkerRepository: rolloverrepo.NewYAMLRepository(store), failPut: true}
	scheduler := rollover.NewScheduler(engine, markers, userrepo.NewYAMLRepository(store), &config.PolicyEnv{RolloverHour: -1}).WithClock(clock)
	ctx := context.Background()

	created, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "overdue work",
		AssigneeID:  "u1",
		DueDate:     "2025-06-10",
	})
	require.NoError(t, err)

	_, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.Error(t, err)
	assert.False(t, applied)

	// A failed marker write must leave the dates where they were.
	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", got.DueDate)

	// Once storage recovers, the same day shifts exactly once.
	markers.failPut = false
	shifted, applied, err := scheduler.PlanTomorrow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, shifted, 1)
	got, err = tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", got.DueDate)
}

func TestPlanTomorrowConcurrentCalls(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	scheduler, tasks, engine := newTestScheduler(t, func() time.Time { return now })
	ctx := context.Background()

	created, err := engine.Create(ctx, testAdmin, workflow.CreateParams{
		Description: "contended",
		AssigneeID:  "u1",
		DueDate:     "2025-06-10",
	})
	require.NoError(t, err)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, _, err := scheduler.PlanTomorrow(ctx, "u1")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", got.DueDate)
}
