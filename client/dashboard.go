package client

import (
	"context"

	"golang.org/x/sync/errgroup"

	"workspace-api/domain"
	"workspace-api/viewstate"
)

// Dashboard keeps a viewstate.Store in step with the server. Mutations touch
// the view state only after the server accepted them; failures are returned
// as *APIError for the caller to show and are not retried.
type Dashboard struct {
	api   *Client
	store *viewstate.Store
}

func NewDashboard(api *Client, store *viewstate.Store) *Dashboard {
	return &Dashboard{api: api, store: store}
}

// State returns a snapshot of the view state.
func (d *Dashboard) State() viewstate.State {
	return d.store.Snapshot()
}

// Load fetches both lists concurrently and replaces the cached ones. The
// loading flag is set for the duration of the call.
func (d *Dashboard) Load(ctx context.Context) error {
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.SetLoading(s, true) })
	defer d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.SetLoading(s, false) })

	var notes []domain.Note
	var tasks []domain.Task
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		notes, err = d.api.ListNotes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = d.api.ListTasks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	d.store.Apply(func(s viewstate.State) viewstate.State {
		return viewstate.SetTasks(viewstate.SetNotes(s, notes), tasks)
	})
	return nil
}

func (d *Dashboard) CreateNote(ctx context.Context, title, content string) (domain.Note, error) {
	n, err := d.api.CreateNote(ctx, NoteInput{Title: title, Content: content})
	if err != nil {
		return domain.Note{}, err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.AddNote(s, n) })
	return n, nil
}

func (d *Dashboard) EditNote(ctx context.Context, id, title, content string) (domain.Note, error) {
	n, err := d.api.UpdateNote(ctx, id, NoteInput{Title: title, Content: content})
	if err != nil {
		return domain.Note{}, err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.ReplaceNote(s, n) })
	return n, nil
}

func (d *Dashboard) DeleteNote(ctx context.Context, id string) error {
	if err := d.api.DeleteNote(ctx, id); err != nil {
		return err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.DeleteNote(s, id) })
	return nil
}

// SummarizeNote fetches a summary and caches it under the note.
func (d *Dashboard) SummarizeNote(ctx context.Context, id string) (string, error) {
	summary, err := d.api.SummarizeNote(ctx, id)
	if err != nil {
		return "", err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.SetSummary(s, id, summary) })
	return summary, nil
}

func (d *Dashboard) CreateTask(ctx context.Context, in TaskInput) (domain.Task, error) {
	t, err := d.api.CreateTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.AddTask(s, t) })
	return t, nil
}

func (d *Dashboard) EditTask(ctx context.Context, id string, in TaskUpdate) (domain.Task, error) {
	t, err := d.api.UpdateTask(ctx, id, in)
	if err != nil {
		return domain.Task{}, err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.ReplaceTask(s, t) })
	return t, nil
}

// ToggleTask resends the task with completed flipped. The rest of the row
// goes along unchanged since updates replace every field.
func (d *Dashboard) ToggleTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return d.EditTask(ctx, t.ID, TaskUpdate{
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   !t.Completed,
	})
}

func (d *Dashboard) DeleteTask(ctx context.Context, id string) error {
	if err := d.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	d.store.Apply(func(s viewstate.State) viewstate.State { return viewstate.DeleteTask(s, id) })
	return nil
}
