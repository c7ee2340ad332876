package api

import (
	"context"
	"net/http"

	"workspace-api/domain"
)

// NoteService is the note workflow the handlers drive.
type NoteService interface {
	List(ctx context.Context, userID string) ([]domain.Note, error)
	Create(ctx context.Context, userID string, in domain.NoteInput) (domain.Note, error)
	Update(ctx context.Context, userID, id string, in domain.NoteInput) (domain.Note, error)
	Delete(ctx context.Context, userID, id string) error
	Summarize(ctx context.Context, userID, id string) (domain.SummaryResult, error)
}

// TaskService is the task workflow the handlers drive.
type TaskService interface {
	List(ctx context.Context, userID string) ([]domain.Task, error)
	Create(ctx context.Context, userID string, in domain.TaskInput) (domain.Task, error)
	Update(ctx context.Context, userID, id string, in domain.TaskUpdate) (domain.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// Authenticator is implemented by types able to resolve the calling user from a request.
type Authenticator interface {
	UserIDFromRequest(r *http.Request) (string, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
}
