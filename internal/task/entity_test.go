package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validTask() *Task {
	return &Task{
		ID:          "t1",
		Description: "test",
		AssigneeID:  "u1",
		Status:      StatusToDo,
	}
}

func TestTaskValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid baseline", func(*Task) {}, false},
		{"invalid status", func(t *Task) { t.Status = "In Limbo" }, true},
		{"progress below range", func(t *Task) { t.Progress = -1 }, true},
		{"progress above range", func(t *Task) { t.Progress = 101 }, true},
		{"blocked without reason", func(t *Task) { t.IsBlocked = true }, true},
		{"reason without blocked", func(t *Task) { t.BlockerReason = "waiting" }, true},
		{"blocked with reason", func(t *Task) { t.IsBlocked = true; t.BlockerReason = "waiting" }, false},
		{"submitted without timestamp", func(t *Task) {
			t.Status = StatusSubmitted
			t.SubmissionNotes = "done"
		}, true},
		{"submitted without notes", func(t *Task) {
			t.Status = StatusSubmitted
			t.SubmittedAt = &now
		}, true},
		{"submitted and blocked", func(t *Task) {
			t.Status = StatusSubmitted
			t.SubmittedAt = &now
			t.SubmissionNotes = "done"
			t.IsBlocked = true
			t.BlockerReason = "waiting"
		}, true},
		{"submitted complete", func(t *Task) {
			t.Status = StatusSubmitted
			t.SubmittedAt = &now
			t.SubmissionNotes = "done"
		}, false},
		{"submitted_at outside submitted", func(t *Task) { t.SubmittedAt = &now }, true},
		{"done without verified_at", func(t *Task) { t.Status = StatusDone }, true},
		{"done with verified_at", func(t *Task) {
			t.Status = StatusDone
			t.VerifiedAt = &now
		}, false},
		{"invalid effort tag", func(t *Task) { t.EffortTag = "huge" }, true},
		{"confidence out of range", func(t *Task) { t.Confidence = 1.2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validTask()
			tt.mutate(tk)
			err := tk.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequiresManagerApproval(t *testing.T) {
	tests := []struct {
		name   string
		points int
		effort EffortTag
		want   bool
	}{
		{"low points small effort", 3, EffortSmall, false},
		{"at the bound", 8, EffortMedium, false},
		{"above the bound", 9, EffortSmall, true},
		{"large effort alone", 1, EffortLarge, true},
		{"untagged", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &Task{StoryPoints: tt.points, EffortTag: tt.effort}
			assert.Equal(t, tt.want, tk.RequiresManagerApproval())
		})
	}
}

func TestQueueEligible(t *testing.T) {
	assert.False(t, (&Task{Status: StatusCaptureInbox}).QueueEligible())
	assert.False(t, (&Task{Status: StatusToDo}).QueueEligible())
	assert.True(t, (&Task{Status: StatusToDo, IsApproved: true}).QueueEligible())
	assert.True(t, (&Task{Status: StatusDone, IsApproved: true}).QueueEligible())
}

func TestDueDateTime(t *testing.T) {
	tk := &Task{DueDate: "2025-06-10"}
	d, ok := tk.DueDateTime(time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), d)

	_, ok = (&Task{}).DueDateTime(time.UTC)
	assert.False(t, ok)

	_, ok = (&Task{DueDate: "junk"}).DueDateTime(time.UTC)
	assert.False(t, ok)
}
