package meeting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/capture"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/meeting"
	meetingrepo "github.com/taskdeck/taskdeck/internal/meeting/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/task"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/user"
	userrepo "github.com/taskdeck/taskdeck/internal/user/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

var (
	admin  = auth.Identity{UserID: "u-admin", Username: "admin", Role: auth.RoleAdmin}
	member = auth.Identity{UserID: "u-member", Username: "member", Role: auth.RoleMember}
)

type fixture struct {
	router   *chi.Mux
	users    user.Repository
	tasks    task.Repository
	verifier *auth.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := meetingrepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	users := userrepo.NewYAMLRepository(store)
	bus := eventbus.New()
	engine := workflow.NewEngine(tasks, bus, &config.PolicyEnv{})
	verifier := auth.NewVerifier("test-secret")

	router := chi.NewRouter()
	router.Use(
		cerr.NewJSONResponseChiMiddleware(),
		auth.Middleware(verifier),
	)
	meeting.NewServer(repo, users, engine, capture.NewHeuristicExtractor(), bus).Routes(router)
	return &fixture{router: router, users: users, tasks: tasks, verifier: verifier}
}

func (f *fixture) request(t *testing.T, id auth.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	token, err := f.verifier.Issue(id, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestProcessMeeting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transcript := "We went over the Q3 launch plan.\n" +
		"alice will prepare the launch checklist\n" +
		"bob is blocked on the API keys"

	rec := f.request(t, admin, http.MethodPost, "/meetings/process", map[string]any{
		"title":      "Q3 sync",
		"date":       "2025-06-10",
		"transcript": transcript,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Meeting          *meeting.Meeting     `json:"meeting"`
		CreatedTasks     []*task.Task `json:"created_tasks"`
		DetectedBlockers []string     `json:"detected_blockers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotNil(t, resp.Meeting)
	assert.Equal(t, "Q3 sync", resp.Meeting.Title)
	assert.Equal(t, admin.UserID, resp.Meeting.ProcessedByID)
	assert.NotEmpty(t, resp.Meeting.SummaryMinutes)

	require.Len(t, resp.CreatedTasks, 1)
	created := resp.CreatedTasks[0]
	assert.Equal(t, task.StatusToDo, created.Status)
	assert.Equal(t, resp.Meeting.ID, created.MeetingID)

	// The named assignee was provisioned as a member.
	alice, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMember, alice.Role)
	assert.Equal(t, alice.ID, created.AssigneeID)

	require.Len(t, resp.DetectedBlockers, 1)
	assert.Contains(t, resp.DetectedBlockers[0], "blocked")
}

func TestProcessMeetingValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, member, http.MethodPost, "/meetings/process", map[string]any{
		"title":      "x",
		"transcript": "y",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, admin, http.MethodPost, "/meetings/process", map[string]any{"title": "no transcript"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListMeetings(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, admin, http.MethodPost, "/meetings/process", map[string]any{
		"title":      "Standup",
		"transcript": "alice will send the weekly update",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, member, http.MethodGet, "/meetings", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, admin, http.MethodGet, "/meetings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var meetings []*meeting.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meetings))
	assert.Len(t, meetings, 1)
}
