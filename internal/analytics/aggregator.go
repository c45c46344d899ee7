package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/meeting"
	"github.com/taskdeck/taskdeck/internal/task"
)

// Aggregator computes the daily briefing and productivity views. It is
// stateless and read-only: every figure is derived from the task snapshot at
// query time, nothing is written back.
type Aggregator struct {
	tasks    task.Repository
	meetings meeting.Repository
	policy   *config.PolicyEnv
	now      func() time.Time
}

func NewAggregator(tasks task.Repository, meetings meeting.Repository, policy *config.PolicyEnv) *Aggregator {
	return &Aggregator{
		tasks:    tasks,
		meetings: meetings,
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock replaces the aggregator's wall clock. Test hook.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

type BriefTask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

type Briefing struct {
	Date            string      `json:"date"`
	CompletedToday  int         `json:"completed_today"`
	BlockedCount    int         `json:"blocked_count"`
	BlockedTasks    []BriefTask `json:"blocked_tasks"`
	RiskCount       int         `json:"risk_count"`
	RiskTasks       []BriefTask `json:"risk_tasks"`
	HighPriority    []BriefTask `json:"high_priority"`
	OverdueCount    int         `json:"overdue_count"`
	OverdueTasks    []BriefTask `json:"overdue_tasks"`
	PendingApproval int         `json:"pending_approval"`
	SLABreached     int         `json:"sla_breached"`
}

type Productivity struct {
	PeriodDays         int     `json:"period_days"`
	MeetingsHeld       int     `json:"meetings_held"`
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	CompletionRate     float64 `json:"completion_rate"`
	AvgCompletionHours float64 `json:"avg_completion_hours"`
	BlockedTasks       int     `json:"blocked_tasks"`
	BlockerRate        float64 `json:"blocker_rate"`
}

const briefingTaskLimit = 3

// scope narrows the snapshot to the caller's tasks unless the caller is an
// admin.
func (a *Aggregator) scope(ctx context.Context, actor auth.Identity) ([]*task.Task, error) {
	f := task.Filter{}
	if !actor.IsAdmin() {
		f.AssigneeID = actor.UserID
	}
	return a.tasks.List(ctx, f)
}

func (a *Aggregator) Briefing(ctx context.Context, actor auth.Identity) (*Briefing, error) {
	tasks, err := a.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := a.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today := midnight

	b := &Briefing{
		Date:         now.Format(task.DateLayout),
		BlockedTasks: []BriefTask{},
		RiskTasks:    []BriefTask{},
		HighPriority: []BriefTask{},
		OverdueTasks: []BriefTask{},
	}

	var open []*task.Task
	for _, t := range tasks {
		if t.VerifiedAt != nil && !t.VerifiedAt.Before(midnight) && t.VerifiedAt.Before(midnight.AddDate(0, 0, 1)) {
			b.CompletedToday++
		}
		if t.Status == task.StatusManagerApprovalPending {
			b.PendingApproval++
		}
		if t.Status == task.StatusSubmitted && t.SubmittedAt != nil && now.Sub(*t.SubmittedAt) > a.policy.VerificationSLA {
			b.SLABreached++
		}
		if !t.Open() {
			continue
		}
		open = append(open, t)

		if t.IsBlocked {
			b.BlockedCount++
			if len(b.BlockedTasks) < briefingTaskLimit {
				b.BlockedTasks = append(b.BlockedTasks, BriefTask{
					ID:          t.ID,
					Description: t.Description,
					Reason:      t.BlockerReason,
				})
			}
		}
		if due, ok := t.DueDateTime(now.Location()); ok && due.Before(today) {
			b.OverdueCount++
			if len(b.OverdueTasks) < briefingTaskLimit {
				b.OverdueTasks = append(b.OverdueTasks, BriefTask{
					ID:          t.ID,
					Description: t.Description,
					DueDate:     t.DueDate,
				})
			}
		}
		if a.atRisk(t, now) {
			b.RiskCount++
			if len(b.RiskTasks) < briefingTaskLimit {
				b.RiskTasks = append(b.RiskTasks, BriefTask{
					ID:          t.ID,
					Description: t.Description,
					Reason:      "behind schedule",
				})
			}
		}
	}

	b.HighPriority = a.topPriority(open)
	return b, nil
}

// atRisk flags open work that looks behind schedule: near or past its due
// date with too little progress. Thresholds are policy parameters.
func (a *Aggregator) atRisk(t *task.Task, now time.Time) bool {
	if t.IsBlocked || !t.QueueEligible() {
		return false
	}
	due, ok := t.DueDateTime(now.Location())
	if !ok {
		return false
	}
	// Due dates mark days; risk looks at the end of the due day.
	endOfDue := due.AddDate(0, 0, 1)
	if endOfDue.Before(now) {
		return t.Progress < 100
	}
	if endOfDue.Sub(now) <= a.policy.RiskDueSoon {
		return t.Progress < a.policy.RiskProgressFloor
	}
	return false
}

// topPriority picks the N most urgent queue-eligible tasks. Ordering is
// deterministic: priority descending, then due date ascending with undated
// tasks last, then id.
func (a *Aggregator) topPriority(open []*task.Task) []BriefTask {
	eligible := make([]*task.Task, 0, len(open))
	for _, t := range open {
		if t.QueueEligible() {
			eligible = append(eligible, t)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		switch {
		case a.DueDate == "" && b.DueDate != "":
			return false
		case a.DueDate != "" && b.DueDate == "":
			return true
		case a.DueDate != b.DueDate:
			return a.DueDate < b.DueDate
		}
		return a.ID < b.ID
	})
	limit := a.policy.HighPriorityLimit
	if limit > len(eligible) {
		limit = len(eligible)
	}
	out := make([]BriefTask, 0, limit)
	for _, t := range eligible[:limit] {
		out = append(out, BriefTask{
			ID:          t.ID,
			Description: t.Description,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
		})
	}
	return out
}

func (a *Aggregator) Productivity(ctx context.Context, actor auth.Identity, days int) (*Productivity, error) {
	if days <= 0 {
		days = 7
	}
	tasks, err := a.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	meetings, err := a.meetings.List(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	start := now.AddDate(0, 0, -days)

	p := &Productivity{PeriodDays: days}
	for _, m := range meetings {
		if !m.CreatedAt.Before(start) {
			p.MeetingsHeld++
		}
	}

	var completionHours []float64
	for _, t := range tasks {
		if t.CreatedAt.Before(start) {
			continue
		}
		p.TotalTasks++
		if t.IsBlocked {
			p.BlockedTasks++
		}
		if t.Status == task.StatusDone {
			p.CompletedTasks++
			if t.VerifiedAt != nil {
				completionHours = append(completionHours, t.VerifiedAt.Sub(t.CreatedAt).Hours())
			}
		}
	}
	if p.TotalTasks > 0 {
		p.CompletionRate = round1(float64(p.CompletedTasks) / float64(p.TotalTasks) * 100)
		p.BlockerRate = round1(float64(p.BlockedTasks) / float64(p.TotalTasks) * 100)
	}
	if len(completionHours) > 0 {
		var sum float64
		for _, h := range completionHours {
			sum += h
		}
		p.AvgCompletionHours = round1(sum / float64(len(completionHours)))
	}
	return p, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
