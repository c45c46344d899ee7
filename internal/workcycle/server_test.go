package workcycle_test

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
	"github.com/taskdeck/taskdeck/internal/task"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workcycle"
	workcyclerepo "github.com/taskdeck/taskdeck/internal/workcycle/repositoryimpl"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

var (
	admin  = auth.Identity{UserID: "u-admin", Username: "admin", Role: auth.RoleAdmin}
	member = auth.Identity{UserID: "u-member", Username: "member", Role: auth.RoleMember}
)

type fixture struct {
	router   *chi.Mux
	repo     workcycle.Repository
	tasks    task.Repository
	verifier *auth.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := workcyclerepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	verifier := auth.NewVerifier("test-secret")

	router := chi.NewRouter()
	router.Use(
		cerr.NewJSONResponseChiMiddleware(),
		auth.Middleware(verifier),
	)
	workcycle.NewServer(repo, tasks).Routes(router)
	return &fixture{router: router, repo: repo, tasks: tasks, verifier: verifier}
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

func TestWorkCycleCreateAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, member, http.MethodPost, "/workcycles", map[string]any{"name": "Cycle 1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, admin, http.MethodPost, "/workcycles", map[string]any{
		"name":       "Cycle 1",
		"start_date": "2025-06-09",
		"end_date":   "2025-06-20",
		"goal":       "ship exports",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created workcycle.WorkCycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Cycle 1", created.Name)

	rec = f.request(t, admin, http.MethodPost, "/workcycles", map[string]any{
		"name":       "Bad dates",
		"start_date": "06/09/2025",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.request(t, member, http.MethodGet, "/workcycles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cycles []*workcycle.WorkCycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycles))
	assert.Len(t, cycles, 1)
}

func TestWorkCycleSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Create(ctx, &workcycle.WorkCycle{ID: "wc1", Name: "Cycle 1", CreatedAt: time.Now()}))

	verified := time.Now()
	seed := []*task.Task{
		{ID: "a", Description: "done item", AssigneeID: "u1", Status: task.StatusDone, Progress: 100, StoryPoints: 3, WorkCycleID: "wc1", VerifiedAt: &verified},
		{ID: "b", Description: "open item", AssigneeID: "u1", Status: task.StatusDoing, Progress: 40, StoryPoints: 5, IsApproved: true, WorkCycleID: "wc1"},
		{ID: "c", Description: "blocked item", AssigneeID: "u1", Status: task.StatusDoing, Progress: 10, StoryPoints: 8, IsApproved: true, IsBlocked: true, BlockerReason: "waiting on vendor", WorkCycleID: "wc1"},
		{ID: "d", Description: "other cycle", AssigneeID: "u1", Status: task.StatusToDo, StoryPoints: 2, WorkCycleID: "wc2"},
	}
	for _, tk := range seed {
		require.NoError(t, f.tasks.Create(ctx, tk))
	}

	rec := f.request(t, member, http.MethodGet, "/workcycles/wc1/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap workcycle.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	assert.Equal(t, "wc1", snap.CycleID)
	assert.Equal(t, "Cycle 1", snap.CycleName)
	assert.Equal(t, 3, snap.TotalItems)
	assert.Equal(t, 1, snap.CompletedItems)
	assert.Equal(t, 16, snap.TotalEffort)
	assert.Equal(t, 13, snap.RemainingEffort)
	require.Len(t, snap.Blockers, 1)
	assert.Equal(t, "c", snap.Blockers[0].ID)
	assert.Equal(t, "waiting on vendor", snap.Blockers[0].Reason)

	rec = f.request(t, member, http.MethodGet, "/workcycles/missing/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkCycleTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Create(ctx, &workcycle.WorkCycle{ID: "wc1", Name: "Cycle 1", CreatedAt: time.Now()}))
	require.NoError(t, f.tasks.Create(ctx, &task.Task{ID: "a", Description: "in cycle", AssigneeID: "u1", Status: task.StatusToDo, WorkCycleID: "wc1"}))
	require.NoError(t, f.tasks.Create(ctx, &task.Task{ID: "b", Description: "outside", AssigneeID: "u1", Status: task.StatusToDo}))

	rec := f.request(t, member, http.MethodGet, "/workcycles/wc1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []*task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].ID)
}
