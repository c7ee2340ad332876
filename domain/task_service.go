package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskStorage defines the document store primitives the task service needs.
// Every method is scoped to userID; a record owned by anyone else is absent.
type TaskStorage interface {
	ListTasks(ctx context.Context, userID string) ([]Task, error)
	GetTask(ctx context.Context, userID, id string) (*Task, error)
	InsertTask(ctx context.Context, t Task) (Task, error)
	ReplaceTask(ctx context.Context, userID, id string, r TaskReplace) (*Task, error)
	DeleteTask(ctx context.Context, userID, id string) (*Task, error)
}

// TaskUpdate is the full set of fields a task update writes.
type TaskUpdate struct {
	Title       string
	Description string
	Priority    string
	Completed   bool
}

// TaskService applies the owner scoped CRUD contract to tasks.
type TaskService struct {
	st     TaskStorage
	events EventPublisher
	now    func() time.Time
}

func NewTaskService(st TaskStorage, events EventPublisher) *TaskService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TaskService{st: st, events: events, now: now}
}

// List returns the caller's tasks, newest first.
func (s *TaskService) List(ctx context.Context, userID string) ([]Task, error) {
	tasks, err := s.st.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Create persists a new open task. Description defaults to empty and
// priority to DefaultPriority.
func (s *TaskService) Create(ctx context.Context, userID string, in TaskInput) (Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Task{}, required("title", "Title is required")
	}
	p, err := ParsePriority(in.Priority)
	if err != nil {
		return Task{}, err
	}
	ts := s.now()
	t, err := s.st.InsertTask(ctx, Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    p,
		Completed:   false,
		UserID:      userID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	publish(ctx, s.events, newEvent(TaskCreated, EntityTask, t.ID, userID, ts, t))
	return t, nil
}

// Update overwrites every mutable field of the caller's task id. Fields the
// caller does not resend are written as their zero value. A task the caller
// does not own is NotFound whatever the body holds.
func (s *TaskService) Update(ctx context.Context, userID, id string, in TaskUpdate) (Task, error) {
	prev, err := s.st.GetTask(ctx, userID, id)
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	if prev == nil {
		return Task{}, ErrNotFound
	}

	if strings.TrimSpace(in.Title) == "" {
		return Task{}, required("title", "Title is required")
	}
	p := Priority(strings.ToLower(strings.TrimSpace(in.Priority)))
	if !p.Valid() {
		return Task{}, &ValidationError{Field: "priority", Message: "Priority must be one of low, medium, high"}
	}

	ts := s.now()
	if ts.Before(prev.UpdatedAt) {
		ts = prev.UpdatedAt
	}
	t, err := s.st.ReplaceTask(ctx, userID, id, TaskReplace{
		Title:       in.Title,
		Description: in.Description,
		Priority:    p,
		Completed:   in.Completed,
		UpdatedAt:   ts,
	})
	if err != nil {
		return Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	if t == nil {
		return Task{}, ErrNotFound
	}

	typ := TaskUpdated
	switch {
	case t.Completed && !prev.Completed:
		typ = TaskCompleted
	case !t.Completed && prev.Completed:
		typ = TaskReopened
	}
	publish(ctx, s.events, newEvent(typ, EntityTask, t.ID, userID, ts, t))
	return *t, nil
}

// Delete removes the caller's task id.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	t, err := s.st.DeleteTask(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if t == nil {
		return ErrNotFound
	}
	publish(ctx, s.events, newEvent(TaskDeleted, EntityTask, t.ID, userID, s.now(), nil))
	return nil
}
