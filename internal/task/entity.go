package task

import (
	"fmt"
	"time"
)

// Status is the authoritative lifecycle position of a task. The values are
// the exact strings the client renders and filters on.
type Status string

const (
	StatusCaptureInbox           Status = "Capture Inbox"
	StatusToDo                   Status = "To Do"
	StatusManagerApprovalPending Status = "Manager Approval Pending"
	StatusDoing                  Status = "Doing"
	StatusSubmitted              Status = "Submitted"
	StatusDone                   Status = "Done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCaptureInbox, StatusToDo, StatusManagerApprovalPending,
		StatusDoing, StatusSubmitted, StatusDone:
		return true
	}
	return false
}

type EffortTag string

const (
	EffortSmall  EffortTag = "small"
	EffortMedium EffortTag = "medium"
	EffortLarge  EffortTag = "large"
)

func (e EffortTag) Valid() bool {
	switch e {
	case "", EffortSmall, EffortMedium, EffortLarge:
		return true
	}
	return false
}

// managerApprovalStoryPoints is the story-point bound above which a task
// needs manager sign-off before active work.
const managerApprovalStoryPoints = 8

// DateLayout is the wire format of due dates and calendar days.
const DateLayout = "2006-01-02"

type Task struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	MeetingID   string `yaml:"meeting_id,omitempty" json:"meeting_id,omitempty"`
	AssigneeID  string `yaml:"assignee_id" json:"assignee_id"`
	CreatorID   string `yaml:"creator_id,omitempty" json:"creator_id,omitempty"`

	Status     Status `yaml:"status" json:"status"`
	IsApproved bool   `yaml:"is_approved" json:"is_approved"`

	IsBlocked     bool   `yaml:"is_blocked" json:"is_blocked"`
	BlockerReason string `yaml:"blocker_reason,omitempty" json:"blocker_reason,omitempty"`

	Progress    int       `yaml:"progress" json:"progress"`
	Priority    int       `yaml:"priority" json:"priority"`
	EffortTag   EffortTag `yaml:"effort_tag,omitempty" json:"effort_tag,omitempty"`
	StoryPoints int       `yaml:"story_points,omitempty" json:"story_points,omitempty"`

	// Confidence is set once by the capture extractor, never mutated after.
	Confidence float64 `yaml:"confidence" json:"confidence"`

	AcceptanceCriteria string `yaml:"acceptance_criteria,omitempty" json:"acceptance_criteria,omitempty"`
	DueDate            string `yaml:"due_date,omitempty" json:"due_date,omitempty"`

	SubmissionNotes string     `yaml:"submission_notes,omitempty" json:"submission_notes,omitempty"`
	SubmissionURL   string     `yaml:"submission_url,omitempty" json:"submission_url,omitempty"`
	SubmittedAt     *time.Time `yaml:"submitted_at,omitempty" json:"submitted_at,omitempty"`

	VerifiedAt        *time.Time `yaml:"verified_at,omitempty" json:"verified_at,omitempty"`
	VerificationNotes string     `yaml:"verification_notes,omitempty" json:"verification_notes,omitempty"`

	WorkCycleID string `yaml:"work_cycle_id,omitempty" json:"work_cycle_id,omitempty"`
	BundleID    string `yaml:"bundle_id,omitempty" json:"bundle_id,omitempty"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	// Version guards read-modify-write cycles; bumped on every update.
	Version int64 `yaml:"version" json:"version"`
}

// RequiresManagerApproval is the approval gate predicate, evaluated once at
// approve time with the values in effect at that instant.
func (t *Task) RequiresManagerApproval() bool {
	return t.StoryPoints > managerApprovalStoryPoints || t.EffortTag == EffortLarge
}

// Open reports whether the task still counts toward active-work views.
func (t *Task) Open() bool {
	return t.Status != StatusDone
}

// QueueEligible reports whether the task may appear on the sprint/priority
// queue.
func (t *Task) QueueEligible() bool {
	return t.IsApproved && t.Status != StatusCaptureInbox
}

// DueDateTime parses the due date, reporting false when unset.
func (t *Task) DueDateTime(loc *time.Location) (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, t.DueDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Validate checks the structural invariants that must hold after every
// workflow operation. A violation here is a programming error, not caller
// input.
func (t *Task) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return fmt.Errorf("progress %d out of range", t.Progress)
	}
	if t.IsBlocked && t.BlockerReason == "" {
		return fmt.Errorf("blocked task without blocker reason")
	}
	if !t.IsBlocked && t.BlockerReason != "" {
		return fmt.Errorf("blocker reason set on unblocked task")
	}
	if t.Status == StatusSubmitted {
		if t.SubmittedAt == nil {
			return fmt.Errorf("submitted task without submitted_at")
		}
		if t.SubmissionNotes == "" {
			return fmt.Errorf("submitted task without submission notes")
		}
		if t.IsBlocked {
			return fmt.Errorf("submitted task cannot be blocked")
		}
	} else if t.SubmittedAt != nil {
		return fmt.Errorf("submitted_at set while status is %q", t.Status)
	}
	if t.Status == StatusDone && t.VerifiedAt == nil {
		return fmt.Errorf("done task without verified_at")
	}
	if !t.EffortTag.Valid() {
		return fmt.Errorf("invalid effort tag %q", t.EffortTag)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", t.Confidence)
	}
	return nil
}
