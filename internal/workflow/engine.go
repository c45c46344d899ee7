package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

// Engine owns every status and flag mutation. All writes go through one of
// its operations: each is a per-task serialized read-modify-write that
// checks the caller's role, then the transition precondition, applies the
// effect, revalidates the task and commits before emitting events.
type Engine struct {
	repo   task.Repository
	bus    *eventbus.Bus
	policy *config.PolicyEnv
	now    func() time.Time
	locks  *keyedMutex
}

func NewEngine(repo task.Repository, bus *eventbus.Bus, policy *config.PolicyEnv) *Engine {
	return &Engine{
		repo:   repo,
		bus:    bus,
		policy: policy,
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
}

// WithClock replaces the engine's wall clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func invalidTransition(op string, st task.Status) error {
	return cerr.Errorf(cerr.FailedPrecondition, "cannot %s: task is %q", op, st)
}

func unauthorized(op string) error {
	return cerr.Errorf(cerr.PermissionDenied, "not allowed to %s", op)
}

// CreateParams is the manual (admin) creation input.
type CreateParams struct {
	Description        string
	MeetingID          string
	AssigneeID         string
	DueDate            string
	EffortTag          task.EffortTag
	Priority           int
	StoryPoints        int
	AcceptanceCriteria string
	WorkCycleID        string
	BundleID           string
}

// Create makes a task on the direct admin path: it starts in To Do with the
// configured approval default.
func (e *Engine) Create(ctx context.Context, actor auth.Identity, p CreateParams) (*task.Task, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("create task")
	}
	if p.Description == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "description must not be empty", nil)
	}
	if err := validateDueDate(p.DueDate); err != nil {
		return nil, err
	}
	if !p.EffortTag.Valid() {
		return nil, cerr.Errorf(cerr.InvalidArgument, "invalid effort tag %q", p.EffortTag)
	}
	now := e.now()
	t := &task.Task{
		ID:                 ulid.Make().String(),
		Description:        p.Description,
		MeetingID:          p.MeetingID,
		AssigneeID:         p.AssigneeID,
		CreatorID:          actor.UserID,
		Status:             task.StatusToDo,
		IsApproved:         e.policy.ApproveOnCreate,
		DueDate:            p.DueDate,
		EffortTag:          p.EffortTag,
		Priority:           p.Priority,
		StoryPoints:        p.StoryPoints,
		AcceptanceCriteria: p.AcceptanceCriteria,
		WorkCycleID:        p.WorkCycleID,
		BundleID:           p.BundleID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := t.Validate(); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := e.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.EventTaskCreated, t.ID, actor.UserID, map[string]string{
		"assignee_id": t.AssigneeID,
	})
	return t, nil
}

// CreateCaptured makes a task on the capture path: it lands in the caller's
// inbox with the extractor's confidence, unapproved.
func (e *Engine) CreateCaptured(ctx context.Context, actor auth.Identity, description string, confidence float64) (*task.Task, error) {
	if description == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "description must not be empty", nil)
	}
	if confidence < 0 || confidence > 1 {
		return nil, cerr.Errorf(cerr.InvalidArgument, "confidence %v out of range [0,1]", confidence)
	}
	now := e.now()
	t := &task.Task{
		ID:          ulid.Make().String(),
		Description: description,
		AssigneeID:  actor.UserID,
		CreatorID:   actor.UserID,
		Status:      task.StatusCaptureInbox,
		Confidence:  confidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.EventTaskCreated, t.ID, actor.UserID, map[string]string{
		"captured": "true",
	})
	return t, nil
}

// MoveToReview promotes an inbox task onto the admin review queue.
func (e *Engine) MoveToReview(ctx context.Context, actor auth.Identity, id string) (*task.Task, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("move task to review")
	}
	return e.mutate(ctx, id, eventbus.EventTaskMovedToReview, actor, func(t *task.Task) error {
		if t.Status != task.StatusCaptureInbox {
			return invalidTransition("move to review", t.Status)
		}
		t.Status = task.StatusToDo
		t.IsApproved = false
		return nil
	})
}

// Approve marks a reviewed task approved. High-effort tasks are routed
// through manager sign-off; the gate is evaluated once, here, with the
// values in effect now.
func (e *Engine) Approve(ctx context.Context, actor auth.Identity, id string) (*task.Task, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("approve task")
	}
	return e.mutate(ctx, id, eventbus.EventTaskApproved, actor, func(t *task.Task) error {
		if t.Status != task.StatusToDo || t.IsApproved {
			return invalidTransition("approve", t.Status)
		}
		t.IsApproved = true
		if t.RequiresManagerApproval() {
			t.Status = task.StatusManagerApprovalPending
		}
		return nil
	})
}

// ManagerApprove releases a gated task back onto the board.
func (e *Engine) ManagerApprove(ctx context.Context, actor auth.Identity, id string) (*task.Task, error) {
	if !actor.CanManagerApprove() {
		return nil, unauthorized("manager-approve task")
	}
	return e.mutate(ctx, id, eventbus.EventTaskManagerApproved, actor, func(t *task.Task) error {
		if t.Status != task.StatusManagerApprovalPending {
			return invalidTransition("manager-approve", t.Status)
		}
		t.Status = task.StatusToDo
		return nil
	})
}

// UpdateProgress sets the assignee's progress; crossing zero moves the task
// into Doing.
func (e *Engine) UpdateProgress(ctx context.Context, actor auth.Identity, id string, progress int) (*task.Task, error) {
	if progress < 0 || progress > 100 {
		return nil, cerr.Errorf(cerr.InvalidArgument, "progress %d out of range [0,100]", progress)
	}
	return e.mutate(ctx, id, eventbus.EventTaskProgressUpdated, actor, func(t *task.Task) error {
		if t.AssigneeID != actor.UserID {
			return unauthorized("update progress")
		}
		if t.Status != task.StatusToDo && t.Status != task.StatusDoing {
			return invalidTransition("update progress", t.Status)
		}
		if t.IsBlocked {
			return cerr.Errorf(cerr.FailedPrecondition, "cannot update progress: task is blocked (%s)", t.BlockerReason)
		}
		if t.Status == task.StatusToDo && progress > 0 && !t.IsApproved && t.RequiresManagerApproval() {
			return cerr.NewError(cerr.FailedPrecondition, "high-effort task requires manager approval before work starts", nil)
		}
		t.Progress = progress
		if t.Status == task.StatusToDo && progress > 0 {
			t.Status = task.StatusDoing
		}
		return nil
	})
}

// ReportBlocker flags the task blocked with a reason.
func (e *Engine) ReportBlocker(ctx context.Context, actor auth.Identity, id, reason string) (*task.Task, error) {
	if reason == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "blocker reason must not be empty", nil)
	}
	return e.mutate(ctx, id, eventbus.EventTaskBlocked, actor, func(t *task.Task) error {
		if t.AssigneeID != actor.UserID && !actor.IsAdmin() {
			return unauthorized("report blocker")
		}
		if t.Status != task.StatusToDo && t.Status != task.StatusDoing {
			return invalidTransition("report blocker", t.Status)
		}
		t.IsBlocked = true
		t.BlockerReason = reason
		return nil
	})
}

// ClearBlocker removes the blocked flag.
func (e *Engine) ClearBlocker(ctx context.Context, actor auth.Identity, id string) (*task.Task, error) {
	return e.mutate(ctx, id, eventbus.EventTaskUnblocked, actor, func(t *task.Task) error {
		if t.AssigneeID != actor.UserID && !actor.IsAdmin() {
			return unauthorized("clear blocker")
		}
		if !t.IsBlocked {
			return invalidTransition("clear blocker", t.Status)
		}
		t.IsBlocked = false
		t.BlockerReason = ""
		return nil
	})
}

// Submit hands finished work over for verification.
func (e *Engine) Submit(ctx context.Context, actor auth.Identity, id, notes, url string) (*task.Task, error) {
	if notes == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "submission notes must not be empty", nil)
	}
	return e.mutate(ctx, id, eventbus.EventTaskSubmitted, actor, func(t *task.Task) error {
		if t.AssigneeID != actor.UserID {
			return unauthorized("submit task")
		}
		if t.Status != task.StatusDoing || t.Progress != 100 || t.IsBlocked {
			return invalidTransition("submit", t.Status)
		}
		now := e.now()
		t.Status = task.StatusSubmitted
		t.SubmittedAt = &now
		t.SubmissionNotes = notes
		t.SubmissionURL = url
		return nil
	})
}

// Verify renders the admin decision on a submitted task: accept closes it,
// reject returns it to Doing for rework.
func (e *Engine) Verify(ctx context.Context, actor auth.Identity, id string, approved bool, notes string) (*task.Task, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("verify task")
	}
	eventType := eventbus.EventTaskVerified
	if !approved {
		eventType = eventbus.EventTaskRejected
	}
	return e.mutate(ctx, id, eventType, actor, func(t *task.Task) error {
		if t.Status != task.StatusSubmitted {
			return invalidTransition("verify", t.Status)
		}
		t.VerificationNotes = notes
		t.SubmittedAt = nil
		if approved {
			now := e.now()
			t.Status = task.StatusDone
			t.VerifiedAt = &now
		} else {
			t.Status = task.StatusDoing
		}
		return nil
	})
}

// Complete closes a task directly, bypassing verification. Legacy client
// path.
func (e *Engine) Complete(ctx context.Context, actor auth.Identity, id string) (*task.Task, error) {
	return e.mutate(ctx, id, eventbus.EventTaskCompleted, actor, func(t *task.Task) error {
		if t.AssigneeID != actor.UserID && !actor.IsAdmin() {
			return unauthorized("complete task")
		}
		if t.Status == task.StatusDone {
			return invalidTransition("complete", t.Status)
		}
		now := e.now()
		t.Status = task.StatusDone
		t.Progress = 100
		t.SubmittedAt = nil
		t.VerifiedAt = &now
		return nil
	})
}

// DetailPatch carries admin edits to review fields. Nil pointers leave the
// field untouched.
type DetailPatch struct {
	Description        *string
	Priority           *int
	EffortTag          *task.EffortTag
	StoryPoints        *int
	AcceptanceCriteria *string
	DueDate            *string
	WorkCycleID        *string
	BundleID           *string
}

// UpdateDetails applies review-time edits. Description and the approval-gate
// inputs (effort tag, story points) freeze once the task is approved; the
// gate decision itself is never re-evaluated.
func (e *Engine) UpdateDetails(ctx context.Context, actor auth.Identity, id string, p DetailPatch) (*task.Task, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("edit task")
	}
	if p.DueDate != nil {
		if err := validateDueDate(*p.DueDate); err != nil {
			return nil, err
		}
	}
	if p.EffortTag != nil && !p.EffortTag.Valid() {
		return nil, cerr.Errorf(cerr.InvalidArgument, "invalid effort tag %q", *p.EffortTag)
	}
	return e.mutate(ctx, id, eventbus.EventTaskUpdated, actor, func(t *task.Task) error {
		if (p.Description != nil || p.EffortTag != nil || p.StoryPoints != nil) && t.IsApproved {
			return invalidTransition("edit review fields", t.Status)
		}
		if p.Description != nil {
			if *p.Description == "" {
				return cerr.NewError(cerr.InvalidArgument, "description must not be empty", nil)
			}
			t.Description = *p.Description
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if p.EffortTag != nil {
			t.EffortTag = *p.EffortTag
		}
		if p.StoryPoints != nil {
			t.StoryPoints = *p.StoryPoints
		}
		if p.AcceptanceCriteria != nil {
			t.AcceptanceCriteria = *p.AcceptanceCriteria
		}
		if p.DueDate != nil {
			t.DueDate = *p.DueDate
		}
		if p.WorkCycleID != nil {
			t.WorkCycleID = *p.WorkCycleID
		}
		if p.BundleID != nil {
			t.BundleID = *p.BundleID
		}
		return nil
	})
}

// ShiftDueDates moves every incomplete task of one user to the day after
// day: dated tasks advance one day, undated ones get that date. The shift is
// all-or-nothing; a mid-bulk storage failure restores the tasks already
// written. A non-nil commit runs after the last task write and before the
// shift is considered done; if it fails, every shifted task is restored so
// the caller's record and the dates never disagree.
func (e *Engine) ShiftDueDates(ctx context.Context, userID string, day time.Time, commit func(context.Context) error) ([]*task.Task, error) {
	tasks, err := e.repo.List(ctx, task.Filter{AssigneeID: userID})
	if err != nil {
		return nil, err
	}

	tomorrow := day.AddDate(0, 0, 1).Format(task.DateLayout)
	var staged []*task.Task
	var originals []*task.Task
	for _, t := range tasks {
		if t.Status == task.StatusDone || t.Progress >= 100 {
			continue
		}
		orig := *t
		if due, ok := t.DueDateTime(day.Location()); ok {
			t.DueDate = due.AddDate(0, 0, 1).Format(task.DateLayout)
		} else {
			t.DueDate = tomorrow
		}
		t.UpdatedAt = e.now()
		if err := t.Validate(); err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", err)
		}
		staged = append(staged, t)
		originals = append(originals, &orig)
	}

	for i, t := range staged {
		if err := e.repo.Update(ctx, t); err != nil {
			return nil, e.restoreShift(ctx, staged[:i], originals[:i], err)
		}
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			return nil, e.restoreShift(ctx, staged, originals, err)
		}
	}

	if len(staged) > 0 {
		e.bus.PublishNew(eventbus.EventTasksRolledOver, userID, userID, map[string]string{
			"count": fmt.Sprintf("%d", len(staged)),
		})
	}
	return staged, nil
}

// restoreShift rolls already-written tasks back to their prior dates and
// returns cause, or Internal when a restore write fails too.
func (e *Engine) restoreShift(ctx context.Context, written, originals []*task.Task, cause error) error {
	for i := range written {
		restored := *originals[i]
		restored.Version = written[i].Version
		if rerr := e.repo.Update(ctx, &restored); rerr != nil {
			return cerr.NewError(cerr.Internal, "rollover restore failed", fmt.Errorf("shift: %w, restore: %w", cause, rerr))
		}
	}
	return cause
}

// mutate runs op under the task's lock and persists the result. The stored
// task is re-read inside the lock so op always sees the latest state.
func (e *Engine) mutate(ctx context.Context, id string, eventType eventbus.EventType, actor auth.Identity, op func(*task.Task) error) (*task.Task, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	t, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := op(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = e.now()
	if err := t.Validate(); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := e.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventType, t.ID, actor.UserID, map[string]string{
		"status":      string(t.Status),
		"assignee_id": t.AssigneeID,
	})
	return t, nil
}

func validateDueDate(d string) error {
	if d == "" {
		return nil
	}
	if _, err := time.Parse(task.DateLayout, d); err != nil {
		return cerr.Errorf(cerr.InvalidArgument, "invalid due date %q, want YYYY-MM-DD", d)
	}
	return nil
}
