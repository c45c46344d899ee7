package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/user"
)

// Dispatcher consumes workflow events and fans them out as stored
// notifications plus web push. Submissions and blockers go to admins, review
// outcomes go back to the assignee, and manager-gated approvals go to
// managers.
type Dispatcher struct {
	bus    *eventbus.Bus
	repo   Repository
	tasks  task.Repository
	users  user.Repository
	sender *Sender
}

func NewDispatcher(bus *eventbus.Bus, repo Repository, tasks task.Repository, users user.Repository, sender *Sender) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		repo:   repo,
		tasks:  tasks,
		users:  users,
		sender: sender,
	}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	id, ch := d.bus.Subscribe(64)
	defer d.bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			d.handle(ctx, event)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event *eventbus.Event) {
	switch event.Type {
	case eventbus.EventTaskSubmitted:
		d.notifyRole(ctx, event, auth.RoleAdmin, "Task submitted",
			"A task was submitted for verification: %s")
	case eventbus.EventTaskBlocked:
		d.notifyRole(ctx, event, auth.RoleAdmin, "Task blocked",
			"A task was reported blocked: %s")
	case eventbus.EventTaskApproved:
		if event.Metadata["status"] == string(task.StatusManagerApprovalPending) {
			d.notifyRole(ctx, event, auth.RoleManager, "Manager approval needed",
				"A high-effort task is waiting for manager approval: %s")
		}
	case eventbus.EventTaskVerified:
		d.notifyAssignee(ctx, event, "Task verified",
			"Your task was verified and marked done: %s")
	case eventbus.EventTaskRejected:
		d.notifyAssignee(ctx, event, "Task returned",
			"Your submission was returned for more work: %s")
	}
}

func (d *Dispatcher) notifyRole(ctx context.Context, event *eventbus.Event, role auth.Role, title, format string) {
	users, err := d.users.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "dispatcher: failed to list users", "error", err)
		return
	}
	desc := d.description(ctx, event.ResourceID)
	for _, u := range users {
		if u.Role != role && !(role == auth.RoleManager && u.Role == auth.RoleAdmin) {
			continue
		}
		if u.ID == event.ActorID {
			continue
		}
		d.deliver(ctx, u.ID, event.ResourceID, title, fmt.Sprintf(format, desc))
	}
}

func (d *Dispatcher) notifyAssignee(ctx context.Context, event *eventbus.Event, title, format string) {
	assigneeID := event.Metadata["assignee_id"]
	if assigneeID == "" || assigneeID == event.ActorID {
		return
	}
	desc := d.description(ctx, event.ResourceID)
	d.deliver(ctx, assigneeID, event.ResourceID, title, fmt.Sprintf(format, desc))
}

func (d *Dispatcher) deliver(ctx context.Context, userID, taskID, title, message string) {
	n := &Notification{
		ID:        ulid.Make().String(),
		UserID:    userID,
		TaskID:    taskID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		slog.ErrorContext(ctx, "dispatcher: failed to store notification", "user_id", userID, "error", err)
		return
	}
	d.sender.SendToUser(ctx, userID, &PushPayload{
		Title: title,
		Body:  message,
		Tag:   taskID,
	})
}

func (d *Dispatcher) description(ctx context.Context, taskID string) string {
	t, err := d.tasks.Get(ctx, taskID)
	if err != nil {
		return taskID
	}
	const max = 80
	if len(t.Description) > max {
		return t.Description[:max] + "..."
	}
	return t.Description
}
