// Package viewstate mirrors the server's note and task lists on the client.
// Every change goes through a pure function that returns a new State, so a
// State value handed out earlier never changes underneath its holder.
package viewstate

import (
	"maps"
	"time"

	"workspace-api/domain"
)

// State is the dashboard's view of the signed-in user's records.
type State struct {
	Notes     []domain.Note
	Tasks     []domain.Task
	Loading   bool
	Summaries map[string]string // note id -> summary text
}

func SetNotes(s State, notes []domain.Note) State {
	s.Notes = append([]domain.Note(nil), notes...)
	return s
}

// AddNote puts n first, where a freshly created note belongs.
func AddNote(s State, n domain.Note) State {
	notes := make([]domain.Note, 0, len(s.Notes)+1)
	s.Notes = append(append(notes, n), s.Notes...)
	return s
}

// UpdateNote merges the non-zero fields of patch into the note with id,
// keeping its position. Unknown ids leave the state as it was.
func UpdateNote(s State, id string, patch domain.Note) State {
	notes := make([]domain.Note, len(s.Notes))
	for i, n := range s.Notes {
		if n.ID == id {
			n = mergeNote(n, patch)
		}
		notes[i] = n
	}
	s.Notes = notes
	return s
}

// ReplaceNote swaps in n for the note with the same id, keeping its
// position. Use it for records echoed back by the server.
func ReplaceNote(s State, n domain.Note) State {
	notes := make([]domain.Note, len(s.Notes))
	for i, cur := range s.Notes {
		if cur.ID == n.ID {
			cur = n
		}
		notes[i] = cur
	}
	s.Notes = notes
	return s
}

// DeleteNote drops the note with id together with its cached summary.
func DeleteNote(s State, id string) State {
	notes := make([]domain.Note, 0, len(s.Notes))
	for _, n := range s.Notes {
		if n.ID != id {
			notes = append(notes, n)
		}
	}
	s.Notes = notes
	if _, ok := s.Summaries[id]; ok {
		s.Summaries = maps.Clone(s.Summaries)
		delete(s.Summaries, id)
	}
	return s
}

func SetTasks(s State, tasks []domain.Task) State {
	s.Tasks = append([]domain.Task(nil), tasks...)
	return s
}

func AddTask(s State, t domain.Task) State {
	tasks := make([]domain.Task, 0, len(s.Tasks)+1)
	s.Tasks = append(append(tasks, t), s.Tasks...)
	return s
}

// UpdateTask merges patch into the task with id. Completed is always taken
// from patch: false is a real value for it, not an absent one.
func UpdateTask(s State, id string, patch domain.Task) State {
	tasks := make([]domain.Task, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.ID == id {
			t = mergeTask(t, patch)
		}
		tasks[i] = t
	}
	s.Tasks = tasks
	return s
}

// ReplaceTask swaps in t for the task with the same id. Every field is
// taken from t, so an emptied description is emptied here too.
func ReplaceTask(s State, t domain.Task) State {
	tasks := make([]domain.Task, len(s.Tasks))
	for i, cur := range s.Tasks {
		if cur.ID == t.ID {
			cur = t
		}
		tasks[i] = cur
	}
	s.Tasks = tasks
	return s
}

func DeleteTask(s State, id string) State {
	tasks := make([]domain.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.ID != id {
			tasks = append(tasks, t)
		}
	}
	s.Tasks = tasks
	return s
}

func SetLoading(s State, loading bool) State {
	s.Loading = loading
	return s
}

// SetSummary caches the summary shown under note id.
func SetSummary(s State, id, summary string) State {
	summaries := make(map[string]string, len(s.Summaries)+1)
	maps.Copy(summaries, s.Summaries)
	summaries[id] = summary
	s.Summaries = summaries
	return s
}

// PendingTasks returns the tasks not yet completed, in list order.
func PendingTasks(s State) []domain.Task {
	return filterTasks(s.Tasks, false)
}

// CompletedTasks returns the completed tasks, in list order.
func CompletedTasks(s State) []domain.Task {
	return filterTasks(s.Tasks, true)
}

func filterTasks(tasks []domain.Task, completed bool) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed == completed {
			out = append(out, t)
		}
	}
	return out
}

func mergeNote(n, patch domain.Note) domain.Note {
	n.Title = pick(n.Title, patch.Title)
	n.Content = pick(n.Content, patch.Content)
	n.UserID = pick(n.UserID, patch.UserID)
	n.CreatedAt = pickTime(n.CreatedAt, patch.CreatedAt)
	n.UpdatedAt = pickTime(n.UpdatedAt, patch.UpdatedAt)
	return n
}

func mergeTask(t, patch domain.Task) domain.Task {
	t.Title = pick(t.Title, patch.Title)
	t.Description = pick(t.Description, patch.Description)
	t.Priority = domain.Priority(pick(string(t.Priority), string(patch.Priority)))
	t.Completed = patch.Completed
	t.UserID = pick(t.UserID, patch.UserID)
	t.CreatedAt = pickTime(t.CreatedAt, patch.CreatedAt)
	t.UpdatedAt = pickTime(t.UpdatedAt, patch.UpdatedAt)
	return t
}

func pick(old, patch string) string {
	if patch != "" {
		return patch
	}
	return old
}

func pickTime(old, patch time.Time) time.Time {
	if !patch.IsZero() {
		return patch
	}
	return old
}
