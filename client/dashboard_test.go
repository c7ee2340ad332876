package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"workspace-api/api"
	"workspace-api/domain"
	"workspace-api/storage"
	"workspace-api/summarize"
	"workspace-api/viewstate"
)

var secret = []byte("dashboard-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemory()
	logger, _ := test.NewNullLogger()
	e := echo.New()
	api.Register(e,
		domain.NewNoteService(store, summarize.Unavailable{}, nil),
		domain.NewTaskService(store, nil),
		api.NewHS256Auth(secret, "", ""),
		logger,
	)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newDashboard(t *testing.T, srv *httptest.Server, sub string) *Dashboard {
	t.Helper()
	return NewDashboard(New(srv.URL+"/api", token(t, sub)), viewstate.NewStore())
}

func TestDashboardLoadTogglesLoading(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	seed := New(srv.URL, token(t, "alice"))
	if _, err := seed.CreateNote(ctx, NoteInput{Title: "n", Content: "c"}); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	if _, err := seed.CreateTask(ctx, TaskInput{Title: "t"}); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	store := viewstate.NewStore()
	var loading []bool
	store.Subscribe(func(s viewstate.State) { loading = append(loading, s.Loading) })
	d := NewDashboard(New(srv.URL+"/api", token(t, "alice")), store)

	if err := d.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loading) != 3 || !loading[0] || !loading[1] || loading[2] {
		t.Fatalf("unexpected loading sequence: %v", loading)
	}
	s := d.State()
	if len(s.Notes) != 1 || len(s.Tasks) != 1 || s.Loading {
		t.Fatalf("unexpected state after load: %+v", s)
	}
}

func TestDashboardTaskFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	d := newDashboard(t, srv, "alice")

	if err := d.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	task, err := d.CreateTask(ctx, TaskInput{Title: "Buy milk", Priority: "high"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Priority != domain.PriorityHigh || task.Completed {
		t.Fatalf("unexpected task: %+v", task)
	}
	if got := viewstate.PendingTasks(d.State()); len(got) != 1 {
		t.Fatalf("expected one pending task, got %+v", got)
	}

	toggled, err := d.ToggleTask(ctx, task)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Completed || toggled.UpdatedAt.Before(task.UpdatedAt) {
		t.Fatalf("unexpected toggled task: %+v", toggled)
	}
	s := d.State()
	if len(viewstate.PendingTasks(s)) != 0 || len(viewstate.CompletedTasks(s)) != 1 {
		t.Fatalf("task not moved to completed: %+v", s.Tasks)
	}

	// A fresh load agrees with the locally applied change.
	if err := d.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := viewstate.CompletedTasks(d.State()); len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("server state diverged: %+v", got)
	}

	if err := d.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(d.State().Tasks) != 0 {
		t.Fatalf("task still cached after delete")
	}
}

func TestDashboardEditTaskClearsDescription(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	d := newDashboard(t, srv, "alice")

	task, err := d.CreateTask(ctx, TaskInput{Title: "Buy milk", Description: "2 litres"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := d.EditTask(ctx, task.ID, TaskUpdate{Title: "Buy milk", Priority: "medium"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Description != "" {
		t.Fatalf("server kept description %q", updated.Description)
	}
	tasks := d.State().Tasks
	if len(tasks) != 1 || tasks[0] != updated {
		t.Fatalf("view state %+v does not match server %+v", tasks, updated)
	}
}

func TestDashboardNoteFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	d := newDashboard(t, srv, "alice")

	first, err := d.CreateNote(ctx, "first", "one")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := d.CreateNote(ctx, "second", "two")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s := d.State(); s.Notes[0].ID != second.ID || s.Notes[1].ID != first.ID {
		t.Fatalf("new notes should be prepended: %+v", s.Notes)
	}

	if _, err := d.EditNote(ctx, first.ID, "first", "edited"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if s := d.State(); s.Notes[1].Content != "edited" {
		t.Fatalf("edit not applied in place: %+v", s.Notes)
	}

	summary, err := d.SummarizeNote(ctx, first.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != domain.SummaryUnavailable || d.State().Summaries[first.ID] != summary {
		t.Fatalf("unexpected summary %q", summary)
	}

	if err := d.DeleteNote(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s := d.State(); len(s.Notes) != 1 || s.Summaries[first.ID] != "" {
		t.Fatalf("unexpected state after delete: %+v", s)
	}
}

func TestDashboardFailuresLeaveStateUntouched(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	d := newDashboard(t, srv, "alice")

	_, err := d.CreateTask(ctx, TaskInput{Title: ""})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Title is required" {
		t.Fatalf("expected validation APIError, got %v", err)
	}

	other := newDashboard(t, srv, "bob")
	note, err := other.CreateNote(ctx, "bob's", "private")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = d.DeleteNote(ctx, note.ID)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found APIError, got %v", err)
	}

	s := d.State()
	if len(s.Notes) != 0 || len(s.Tasks) != 0 {
		t.Fatalf("failed calls changed the view state: %+v", s)
	}
}

func TestClientUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "")
	_, err := c.ListNotes(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Unauthorized" {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestDashboardLoadFailureClearsLoading(t *testing.T) {
	srv := newTestServer(t)
	d := NewDashboard(New(srv.URL, "not.a.token"), viewstate.NewStore())
	if err := d.Load(context.Background()); err == nil {
		t.Fatalf("expected load to fail")
	}
	if d.State().Loading {
		t.Fatalf("loading flag left set")
	}
}
