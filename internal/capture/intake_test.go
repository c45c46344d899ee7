package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/task"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

var captor = auth.Identity{UserID: "u1", Username: "member", Role: auth.RoleMember}

type stubExtractor struct {
	extraction *Extraction
	err        error
}

func (s *stubExtractor) ExtractTask(context.Context, string) (*Extraction, error) {
	return s.extraction, s.err
}

func newTestIntake(t *testing.T, ext Extractor) *Intake {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	engine := workflow.NewEngine(taskrepo.NewYAMLRepository(store), eventbus.New(), &config.PolicyEnv{})
	return NewIntake(ext, engine)
}

func TestIntakeCapture(t *testing.T) {
	intake := newTestIntake(t, &stubExtractor{extraction: &Extraction{Description: "call the vendor", Confidence: 0.8}})

	created, err := intake.Capture(context.Background(), captor, "  need to call the vendor  ")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCaptureInbox, created.Status)
	assert.Equal(t, "call the vendor", created.Description)
	assert.Equal(t, 0.8, created.Confidence)
	assert.Equal(t, captor.UserID, created.AssigneeID)
	assert.False(t, created.IsApproved)
}

func TestIntakeCaptureEmptyText(t *testing.T) {
	intake := newTestIntake(t, &stubExtractor{extraction: &Extraction{Confidence: 0.5}})

	_, err := intake.Capture(context.Background(), captor, "   ")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestIntakeCaptureExtractorFailure(t *testing.T) {
	intake := newTestIntake(t, &stubExtractor{err: errors.New("model timeout")})

	_, err := intake.Capture(context.Background(), captor, "some text")
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestIntakeCaptureBadConfidence(t *testing.T) {
	intake := newTestIntake(t, &stubExtractor{extraction: &Extraction{Description: "x", Confidence: 1.3}})

	_, err := intake.Capture(context.Background(), captor, "some text")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestIntakeCaptureFallsBackToRawText(t *testing.T) {
	intake := newTestIntake(t, &stubExtractor{extraction: &Extraction{Description: "  ", Confidence: 0.4}})

	created, err := intake.Capture(context.Background(), captor, " raw note ")
	require.NoError(t, err)
	assert.Equal(t, "raw note", created.Description)
}

func TestHeuristicExtractorConfidence(t *testing.T) {
	h := NewHeuristicExtractor()
	ctx := context.Background()

	plain, err := h.ExtractTask(ctx, "lunch was good")
	require.NoError(t, err)
	assert.Equal(t, 0.3, plain.Confidence)

	action, err := h.ExtractTask(ctx, "need to review the deployment")
	require.NoError(t, err)
	assert.Greater(t, action.Confidence, plain.Confidence)
	assert.LessOrEqual(t, action.Confidence, 0.95)

	// Deterministic for the same input.
	again, err := h.ExtractTask(ctx, "need to review the deployment")
	require.NoError(t, err)
	assert.Equal(t, action.Confidence, again.Confidence)
}

func TestHeuristicExtractMeeting(t *testing.T) {
	h := NewHeuristicExtractor()
	transcript := "We discussed the Q3 launch.\n" +
		"alice will prepare the launch checklist\n" +
		"bob needs to update the pricing page\n" +
		"The timeline looks fine overall."

	ext, err := h.ExtractMeeting(context.Background(), "Q3 sync", transcript)
	require.NoError(t, err)
	require.Len(t, ext.Tasks, 2)
	assert.Equal(t, "alice", ext.Tasks[0].Assignee)
	assert.Equal(t, "bob", ext.Tasks[1].Assignee)
	assert.NotEmpty(t, ext.Summary)
}

func TestHeuristicExtractMeetingLeadWordsAreNotNames(t *testing.T) {
	h := NewHeuristicExtractor()
	transcript := "Need to review the API docs\n" +
		"We should schedule the retro\n" +
		"carol will send the agenda"

	ext, err := h.ExtractMeeting(context.Background(), "planning", transcript)
	require.NoError(t, err)
	require.Len(t, ext.Tasks, 3)

	// Action items that open with filler verbs stay unassigned.
	assert.Empty(t, ext.Tasks[0].Assignee)
	assert.Empty(t, ext.Tasks[1].Assignee)
	assert.Equal(t, "carol", ext.Tasks[2].Assignee)
}

func TestDetectBlockers(t *testing.T) {
	transcript := "alice is blocked on the API keys\n" +
		"everything else is on track\n" +
		"bob is waiting for legal signoff"

	blockers := DetectBlockers(transcript)
	require.Len(t, blockers, 2)
	assert.Contains(t, blockers[0], "blocked")
	assert.Contains(t, blockers[1], "waiting")

	assert.Empty(t, DetectBlockers("all good"))
}
