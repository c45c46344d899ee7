package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/notification"
	notificationrepo "github.com/taskdeck/taskdeck/internal/notification/repositoryimpl"
	pushsubrepo "github.com/taskdeck/taskdeck/internal/pushsubscription/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/task"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/user"
	userrepo "github.com/taskdeck/taskdeck/internal/user/repositoryimpl"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

type dispatcherFixture struct {
	dispatcher *notification.Dispatcher
	repo       notification.Repository
	tasks      task.Repository
	users      user.Repository
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := notificationrepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	users := userrepo.NewYAMLRepository(store)
	// Unconfigured VAPID keys: stored notifications only, no push.
	sender := notification.NewSender(&config.VAPIDEnv{}, pushsubrepo.NewYAMLRepository(store))
	return &dispatcherFixture{
		dispatcher: notification.NewDispatcher(eventbus.New(), repo, tasks, users, sender),
		repo:       repo,
		tasks:      tasks,
		users:      users,
	}
}

func (f *dispatcherFixture) seedUser(t *testing.T, id string, role auth.Role) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &user.User{
		ID:        id,
		Username:  id,
		Role:      role,
		CreatedAt: time.Now(),
	}))
}

func (f *dispatcherFixture) seedTask(t *testing.T, id, assigneeID, description string) {
	t.Helper()
	require.NoError(t, f.tasks.Create(context.Background(), &task.Task{
		ID:          id,
		Description: description,
		AssigneeID:  assigneeID,
		Status:      task.StatusToDo,
	}))
}

func newEvent(eventType eventbus.EventType, resourceID, actorID string, metadata map[string]string) *eventbus.Event {
	return &eventbus.Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		ActorID:    actorID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
}

func TestDispatcherSubmittedNotifiesAdmins(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	f.seedUser(t, "admin1", auth.RoleAdmin)
	f.seedUser(t, "admin2", auth.RoleAdmin)
	f.seedUser(t, "member1", auth.RoleMember)
	f.seedTask(t, "t1", "member1", "ship the exports")

	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskSubmitted, "t1", "member1", map[string]string{
		"status":      string(task.StatusSubmitted),
		"assignee_id": "member1",
	}))

	for _, adminID := range []string{"admin1", "admin2"} {
		got, err := f.repo.ListByUser(ctx, adminID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t1", got[0].TaskID)
		assert.Contains(t, got[0].Message, "ship the exports")
		assert.False(t, got[0].IsRead)
	}

	// The submitting member gets nothing.
	got, err := f.repo.ListByUser(ctx, "member1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDispatcherVerifiedNotifiesAssignee(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	f.seedUser(t, "admin1", auth.RoleAdmin)
	f.seedUser(t, "member1", auth.RoleMember)
	f.seedTask(t, "t1", "member1", "exports")

	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskVerified, "t1", "admin1", map[string]string{
		"status":      string(task.StatusDone),
		"assignee_id": "member1",
	}))

	got, err := f.repo.ListByUser(ctx, "member1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "verified")
}

func TestDispatcherRejectedNotifiesAssignee(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	f.seedTask(t, "t1", "member1", "exports")

	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskRejected, "t1", "admin1", map[string]string{
		"status":      string(task.StatusDoing),
		"assignee_id": "member1",
	}))

	got, err := f.repo.ListByUser(ctx, "member1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "returned")
}

func TestDispatcherGatedApprovalNotifiesManagers(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	f.seedUser(t, "admin1", auth.RoleAdmin)
	f.seedUser(t, "manager1", auth.RoleManager)
	f.seedUser(t, "member1", auth.RoleMember)
	f.seedTask(t, "t1", "member1", "big item")

	// Approval that tripped the manager gate.
	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskApproved, "t1", "admin1", map[string]string{
		"status":      string(task.StatusManagerApprovalPending),
		"assignee_id": "member1",
	}))

	got, err := f.repo.ListByUser(ctx, "manager1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Plain approval without the gate stays quiet.
	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskApproved, "t1", "admin1", map[string]string{
		"status":      string(task.StatusToDo),
		"assignee_id": "member1",
	}))
	got, err = f.repo.ListByUser(ctx, "manager1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Members are never on the manager audience.
	memberNotes, err := f.repo.ListByUser(ctx, "member1")
	require.NoError(t, err)
	assert.Empty(t, memberNotes)
}

func TestDispatcherIgnoresUnrelatedEvents(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	f.seedUser(t, "admin1", auth.RoleAdmin)
	f.seedTask(t, "t1", "member1", "item")

	f.dispatcher.Handle(ctx, newEvent(eventbus.EventTaskProgressUpdated, "t1", "member1", map[string]string{
		"status":      string(task.StatusDoing),
		"assignee_id": "member1",
	}))

	got, err := f.repo.ListByUser(ctx, "admin1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
