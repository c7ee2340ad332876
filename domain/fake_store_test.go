package domain

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
)

type fakeStore struct {
	mu     sync.Mutex
	seq    int
	notes  map[string]Note
	tasks  map[string]Task
	err    error
	events []Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: map[string]Note{}, tasks: map[string]Task{}}
}

func (f *fakeStore) nextID() string {
	f.seq++
	return "id-" + strconv.Itoa(f.seq)
}

func (f *fakeStore) ListNotes(ctx context.Context, userID string) ([]Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []Note
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) GetNote(ctx context.Context, userID, id string) (*Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	return &n, nil
}

func (f *fakeStore) InsertNote(ctx context.Context, n Note) (Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Note{}, f.err
	}
	n.ID = f.nextID()
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeStore) ReplaceNote(ctx context.Context, userID, id string, r NoteReplace) (*Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	n.Title, n.Content, n.UpdatedAt = r.Title, r.Content, r.UpdatedAt
	f.notes[id] = n
	return &n, nil
}

func (f *fakeStore) DeleteNote(ctx context.Context, userID, id string) (*Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	delete(f.notes, id)
	return &n, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t Task) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Task{}, f.err
	}
	t.ID = f.nextID()
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) ReplaceTask(ctx context.Context, userID, id string, r TaskReplace) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.Title, t.Description, t.Priority, t.Completed, t.UpdatedAt = r.Title, r.Description, r.Priority, r.Completed, r.UpdatedAt
	f.tasks[id] = t
	return &t, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, userID, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	delete(f.tasks, id)
	return &t, nil
}

func (f *fakeStore) Publish(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("queue down") }
