package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"workspace-api/domain"
)

const (
	edmDateTime         = "Edm.DateTime"
	maxConflictAttempts = 5
)

// Backend is the full set of document store primitives used by the services.
type Backend interface {
	domain.NoteStorage
	domain.TaskStorage
}

// table is the subset of an Azure table the adapter needs.
type table interface {
	create(ctx context.Context) error
	list(ctx context.Context, filter string) ([][]byte, error)
	get(ctx context.Context, pk, rk string) ([]byte, azcore.ETag, error)
	add(ctx context.Context, payload []byte) error
	replace(ctx context.Context, payload []byte, etag azcore.ETag) error
	remove(ctx context.Context, pk, rk string, etag azcore.ETag) error
}

// Storage keeps notes and tasks in Azure Table Storage. The owner id is the
// partition key and the record id the row key, so every point lookup is
// owner scoped by construction.
type Storage struct {
	noteTable table
	taskTable table

	mu          sync.Mutex
	provisioned bool
}

// New creates a Storage instance from the given connection string. The
// underlying HTTP pipeline is shared by all callers.
func New(connStr, notesTable, tasksTable string) (*Storage, error) {
	svc, err := NewServiceClient(connStr)
	if err != nil {
		return nil, err
	}
	return &Storage{
		noteTable: azTable{svc.NewClient(notesTable)},
		taskTable: azTable{svc.NewClient(tasksTable)},
	}, nil
}

// NewServiceClient builds a table service client with retry settings suited
// to request handling.
func NewServiceClient(connStr string) (*aztables.ServiceClient, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	return aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
}

// EnsureTables creates both tables the first time it succeeds. Every
// operation calls it, so explicit provisioning is optional.
func (s *Storage) EnsureTables(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provisioned {
		return nil
	}
	for _, t := range []table{s.noteTable, s.taskTable} {
		if err := t.create(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.provisioned = true
	return nil
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type noteEntity struct {
	entityKeys
	Title         string    `json:"Title"`
	Content       string    `json:"Content"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type,omitempty"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type,omitempty"`
}

func (e noteEntity) toDomain() domain.Note {
	return domain.Note{
		ID:        e.RowKey,
		Title:     e.Title,
		Content:   e.Content,
		UserID:    e.PartitionKey,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

func noteEntityFrom(n domain.Note) noteEntity {
	return noteEntity{
		entityKeys:    entityKeys{PartitionKey: n.UserID, RowKey: n.ID},
		Title:         n.Title,
		Content:       n.Content,
		CreatedAt:     n.CreatedAt,
		CreatedAtType: edmDateTime,
		UpdatedAt:     n.UpdatedAt,
		UpdatedAtType: edmDateTime,
	}
}

type taskEntity struct {
	entityKeys
	Title         string    `json:"Title"`
	Description   string    `json:"Description"`
	Priority      string    `json:"Priority"`
	Completed     bool      `json:"Completed"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type,omitempty"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type,omitempty"`
}

func (e taskEntity) toDomain() domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Priority:    domain.Priority(e.Priority),
		Completed:   e.Completed,
		UserID:      e.PartitionKey,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func taskEntityFrom(t domain.Task) taskEntity {
	return taskEntity{
		entityKeys:    entityKeys{PartitionKey: t.UserID, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Priority:      string(t.Priority),
		Completed:     t.Completed,
		CreatedAt:     t.CreatedAt,
		CreatedAtType: edmDateTime,
		UpdatedAt:     t.UpdatedAt,
		UpdatedAtType: edmDateTime,
	}
}

// ListNotes retrieves all notes for the provided user, most recently
// modified first.
func (s *Storage) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	rows, err := s.noteTable.list(ctx, partitionFilter(userID))
	if err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, len(rows))
	for _, row := range rows {
		var ent noteEntity
		if err := sonic.Unmarshal(row, &ent); err != nil {
			return nil, err
		}
		notes = append(notes, ent.toDomain())
	}
	sortNotes(notes)
	return notes, nil
}

// GetNote retrieves a note if present.
func (s *Storage) GetNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent noteEntity
	_, found, err := getEntity(ctx, s.noteTable, userID, id, &ent)
	if err != nil || !found {
		return nil, err
	}
	n := ent.toDomain()
	return &n, nil
}

// InsertNote stores a new note under a fresh row key.
func (s *Storage) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return domain.Note{}, err
	}
	n.ID = uuid.NewString()
	payload, err := sonic.Marshal(noteEntityFrom(n))
	if err != nil {
		return domain.Note{}, err
	}
	if err := s.noteTable.add(ctx, payload); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

// ReplaceNote overwrites title, content and updatedAt of an existing note.
func (s *Storage) ReplaceNote(ctx context.Context, userID, id string, r domain.NoteReplace) (*domain.Note, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent noteEntity
	found, err := replaceEntity(ctx, s.noteTable, userID, id, &ent, func() {
		ent.Title = r.Title
		ent.Content = r.Content
		ent.UpdatedAt = r.UpdatedAt
		ent.CreatedAtType = edmDateTime
		ent.UpdatedAtType = edmDateTime
	})
	if err != nil || !found {
		return nil, err
	}
	n := ent.toDomain()
	return &n, nil
}

// DeleteNote removes a note and returns what was deleted.
func (s *Storage) DeleteNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent noteEntity
	found, err := deleteEntity(ctx, s.noteTable, userID, id, &ent)
	if err != nil || !found {
		return nil, err
	}
	n := ent.toDomain()
	return &n, nil
}

// ListTasks retrieves all tasks for the provided user, newest first.
func (s *Storage) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	rows, err := s.taskTable.list(ctx, partitionFilter(userID))
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		var ent taskEntity
		if err := sonic.Unmarshal(row, &ent); err != nil {
			return nil, err
		}
		tasks = append(tasks, ent.toDomain())
	}
	sortTasks(tasks)
	return tasks, nil
}

// GetTask retrieves a task if present.
func (s *Storage) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent taskEntity
	_, found, err := getEntity(ctx, s.taskTable, userID, id, &ent)
	if err != nil || !found {
		return nil, err
	}
	t := ent.toDomain()
	return &t, nil
}

// InsertTask stores a new task under a fresh row key.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return domain.Task{}, err
	}
	t.ID = uuid.NewString()
	payload, err := sonic.Marshal(taskEntityFrom(t))
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.taskTable.add(ctx, payload); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ReplaceTask overwrites every mutable field of an existing task.
func (s *Storage) ReplaceTask(ctx context.Context, userID, id string, r domain.TaskReplace) (*domain.Task, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent taskEntity
	found, err := replaceEntity(ctx, s.taskTable, userID, id, &ent, func() {
		ent.Title = r.Title
		ent.Description = r.Description
		ent.Priority = string(r.Priority)
		ent.Completed = r.Completed
		ent.UpdatedAt = r.UpdatedAt
		ent.CreatedAtType = edmDateTime
		ent.UpdatedAtType = edmDateTime
	})
	if err != nil || !found {
		return nil, err
	}
	t := ent.toDomain()
	return &t, nil
}

// DeleteTask removes a task and returns what was deleted.
func (s *Storage) DeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if err := s.EnsureTables(ctx); err != nil {
		return nil, err
	}
	var ent taskEntity
	found, err := deleteEntity(ctx, s.taskTable, userID, id, &ent)
	if err != nil || !found {
		return nil, err
	}
	t := ent.toDomain()
	return &t, nil
}

func getEntity(ctx context.Context, t table, pk, rk string, out any) (azcore.ETag, bool, error) {
	if pk == "" || rk == "" {
		return "", false, nil
	}
	data, etag, err := t.get(ctx, pk, rk)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return "", false, err
	}
	return etag, true, nil
}

// replaceEntity reads the row into out, applies mutate and writes it back
// guarded by the row's ETag, re-reading on conflicting writes.
func replaceEntity(ctx context.Context, t table, pk, rk string, out any, mutate func()) (bool, error) {
	for attempt := 0; attempt < maxConflictAttempts; attempt++ {
		etag, found, err := getEntity(ctx, t, pk, rk, out)
		if err != nil || !found {
			return false, err
		}
		mutate()
		payload, err := sonic.Marshal(out)
		if err != nil {
			return false, err
		}
		err = t.replace(ctx, payload, etag)
		switch {
		case err == nil:
			return true, nil
		case isStatus(err, http.StatusNotFound):
			return false, nil
		case isStatus(err, http.StatusPreconditionFailed):
			continue
		default:
			return false, err
		}
	}
	return false, domain.ErrConcurrencyConflict
}

func deleteEntity(ctx context.Context, t table, pk, rk string, out any) (bool, error) {
	for attempt := 0; attempt < maxConflictAttempts; attempt++ {
		etag, found, err := getEntity(ctx, t, pk, rk, out)
		if err != nil || !found {
			return false, err
		}
		err = t.remove(ctx, pk, rk, etag)
		switch {
		case err == nil:
			return true, nil
		case isStatus(err, http.StatusNotFound):
			return false, nil
		case isStatus(err, http.StatusPreconditionFailed):
			continue
		default:
			return false, err
		}
	}
	return false, domain.ErrConcurrencyConflict
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func partitionFilter(userID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(userID, "'", "''") + "'"
}

// sortNotes orders by last modification, newest first, with id as tie breaker.
func sortNotes(notes []domain.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}

// sortTasks orders by creation time, newest first, with id as tie breaker.
func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

// azTable adapts an aztables client to table.
type azTable struct {
	client *aztables.Client
}

func (t azTable) create(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
	}
	return err
}

func (t azTable) list(ctx context.Context, filter string) ([][]byte, error) {
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var rows [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, resp.Entities...)
	}
	return rows, nil
}

func (t azTable) get(ctx context.Context, pk, rk string) ([]byte, azcore.ETag, error) {
	resp, err := t.client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		return nil, "", err
	}
	return resp.Value, resp.ETag, nil
}

func (t azTable) add(ctx context.Context, payload []byte) error {
	_, err := t.client.AddEntity(ctx, payload, nil)
	return err
}

func (t azTable) replace(ctx context.Context, payload []byte, etag azcore.ETag) error {
	_, err := t.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (t azTable) remove(ctx context.Context, pk, rk string, etag azcore.ETag) error {
	_, err := t.client.DeleteEntity(ctx, pk, rk, &aztables.DeleteEntityOptions{IfMatch: &etag})
	return err
}
