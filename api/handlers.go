package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"workspace-api/domain"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

const (
	noteNotFound = "Note not found"
	taskNotFound = "Task not found"
)

var errInvalidBody = &domain.ValidationError{Field: "body", Message: "Invalid request body"}

type route struct {
	method   string
	path     string
	op       string
	notFound string
	fn       guardedHandler
}

// Register wires up all API routes on the provided Echo instance. Every
// resource route is served both at the root and under /api.
func Register(e *echo.Echo, notes NoteService, tasks TaskService, auth Authenticator, logger *log.Logger) {
	e.GET("/healthz", healthz)

	for _, prefix := range []string{"", "/api"} {
		for _, rt := range routes(prefix, notes, tasks) {
			e.Add(rt.method, rt.path, guard(auth, logger, rt))
		}
	}
}

func routes(prefix string, notes NoteService, tasks TaskService) []route {
	return []route{
		{http.MethodGet, prefix + "/notes", "notes.list", noteNotFound, listNotes(notes)},
		{http.MethodPost, prefix + "/notes", "notes.create", noteNotFound, createNote(notes)},
		{http.MethodPut, prefix + "/notes/:id", "notes.update", noteNotFound, updateNote(notes)},
		{http.MethodDelete, prefix + "/notes/:id", "notes.delete", noteNotFound, deleteNote(notes)},
		{http.MethodPost, prefix + "/notes/:id/summarize", "notes.summarize", noteNotFound, summarizeNote(notes)},
		{http.MethodGet, prefix + "/tasks", "tasks.list", taskNotFound, listTasks(tasks)},
		{http.MethodPost, prefix + "/tasks", "tasks.create", taskNotFound, createTask(tasks)},
		{http.MethodPut, prefix + "/tasks/:id", "tasks.update", taskNotFound, updateTask(tasks)},
		{http.MethodDelete, prefix + "/tasks/:id", "tasks.delete", taskNotFound, deleteTask(tasks)},
	}
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func decodeBody(c echo.Context, m *requestMetrics, v any) error {
	lr := io.LimitReader(c.Request().Body, MaxBodyBytes)
	if err := sonic.ConfigStd.NewDecoder(lr).Decode(v); err != nil {
		m.SetErrorStage(errorStageBody)
		return errInvalidBody
	}
	return nil
}

func listNotes(notes NoteService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		start := time.Now()
		out, err := notes.List(c.Request().Context(), userID)
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(len(out))
		return c.JSON(http.StatusOK, out)
	}
}

func createNote(notes NoteService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		var req noteRequest
		if err := decodeBody(c, m, &req); err != nil {
			return err
		}
		start := time.Now()
		n, err := notes.Create(c.Request().Context(), userID, domain.NoteInput{Title: req.Title, Content: req.Content})
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(1)
		return c.JSON(http.StatusCreated, n)
	}
}

func updateNote(notes NoteService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		var req noteRequest
		if err := decodeBody(c, m, &req); err != nil {
			return err
		}
		start := time.Now()
		n, err := notes.Update(c.Request().Context(), userID, c.Param("id"), domain.NoteInput{Title: req.Title, Content: req.Content})
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(1)
		return c.JSON(http.StatusOK, n)
	}
}

func deleteNote(notes NoteService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		start := time.Now()
		err := notes.Delete(c.Request().Context(), userID, c.Param("id"))
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Note deleted successfully"})
	}
}

// summarizeNote always answers 200 for an owned note; a failed summarizer
// shows up only as the placeholder text.
func summarizeNote(notes NoteService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		start := time.Now()
		res, err := notes.Summarize(c.Request().Context(), userID, c.Param("id"))
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		if !res.OK {
			m.SetErrorStage("summarizer")
		}
		return c.JSON(http.StatusOK, summaryResponse{Summary: res.Text})
	}
}

func listTasks(tasks TaskService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		start := time.Now()
		out, err := tasks.List(c.Request().Context(), userID)
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(len(out))
		return c.JSON(http.StatusOK, out)
	}
}

func createTask(tasks TaskService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		var req createTaskRequest
		if err := decodeBody(c, m, &req); err != nil {
			return err
		}
		start := time.Now()
		t, err := tasks.Create(c.Request().Context(), userID, domain.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
		})
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(1)
		return c.JSON(http.StatusCreated, t)
	}
}

func updateTask(tasks TaskService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		var req updateTaskRequest
		if err := decodeBody(c, m, &req); err != nil {
			return err
		}
		start := time.Now()
		t, err := tasks.Update(c.Request().Context(), userID, c.Param("id"), domain.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Completed:   req.Completed,
		})
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		m.SetRecords(1)
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(tasks TaskService) guardedHandler {
	return func(c echo.Context, userID string, m *requestMetrics) error {
		start := time.Now()
		err := tasks.Delete(c.Request().Context(), userID, c.Param("id"))
		m.ObserveStore(time.Since(start))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Task deleted successfully"})
	}
}
