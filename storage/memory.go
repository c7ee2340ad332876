package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"workspace-api/domain"
)

// Memory is a process local Backend for development and tests.
type Memory struct {
	mu    sync.RWMutex
	notes map[string]domain.Note
	tasks map[string]domain.Task
}

func NewMemory() *Memory {
	return &Memory{notes: map[string]domain.Note{}, tasks: map[string]domain.Task{}}
}

func (m *Memory) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notes := []domain.Note{}
	for _, n := range m.notes {
		if n.UserID == userID {
			notes = append(notes, n)
		}
	}
	sortNotes(notes)
	return notes, nil
}

func (m *Memory) GetNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	return &n, nil
}

func (m *Memory) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.NewString()
	m.notes[n.ID] = n
	return n, nil
}

func (m *Memory) ReplaceNote(ctx context.Context, userID, id string, r domain.NoteReplace) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	n.Title = r.Title
	n.Content = r.Content
	n.UpdatedAt = r.UpdatedAt
	m.notes[id] = n
	return &n, nil
}

func (m *Memory) DeleteNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	delete(m.notes, id)
	return &n, nil
}

func (m *Memory) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := []domain.Task{}
	for _, t := range m.tasks {
		if t.UserID == userID {
			tasks = append(tasks, t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (m *Memory) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Memory) ReplaceTask(ctx context.Context, userID, id string, r domain.TaskReplace) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.Title = r.Title
	t.Description = r.Description
	t.Priority = r.Priority
	t.Completed = r.Completed
	t.UpdatedAt = r.UpdatedAt
	m.tasks[id] = t
	return &t, nil
}

func (m *Memory) DeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	delete(m.tasks, id)
	return &t, nil
}
