package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"workspace-api/domain"
)

// fakeCollection matches filters by plain field equality, which is all the
// adapter's owner filters use.
type fakeCollection struct {
	mu      sync.Mutex
	docs    []bson.M
	indexed int
}

func (f *fakeCollection) matches(doc bson.M, filter any) bool {
	for k, v := range filter.(bson.M) {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeCollection) find(filter any) int {
	for i, d := range f.docs {
		if f.matches(d, filter) {
			return i
		}
	}
	return -1
}

func noMatch() *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
}

func (f *fakeCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, d := range f.docs {
		if f.matches(d, filter) {
			out = append(out, d)
		}
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(filter)
	if i < 0 {
		return noMatch()
	}
	return mongo.NewSingleResultFromDocument(f.docs[i], nil, nil)
}

func (f *fakeCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, m)
	return &mongo.InsertOneResult{InsertedID: m["_id"]}, nil
}

func (f *fakeCollection) FindOneAndUpdate(ctx context.Context, filter, update any, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(filter)
	if i < 0 {
		return noMatch()
	}
	for k, v := range update.(bson.M)["$set"].(bson.M) {
		f.docs[i][k] = v
	}
	return mongo.NewSingleResultFromDocument(f.docs[i], nil, nil)
}

func (f *fakeCollection) FindOneAndDelete(ctx context.Context, filter any, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(filter)
	if i < 0 {
		return noMatch()
	}
	doc := f.docs[i]
	f.docs = append(f.docs[:i], f.docs[i+1:]...)
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (f *fakeCollection) createIndexes(ctx context.Context, models []mongo.IndexModel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed++
	return nil
}

func newTestMongo() (*Mongo, *fakeCollection, *fakeCollection) {
	notes, tasks := &fakeCollection{}, &fakeCollection{}
	return &Mongo{notes: notes, tasks: tasks}, notes, tasks
}

func TestOwnerFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	filter, ok := ownerFilter("alice", oid.Hex())
	if !ok {
		t.Fatalf("expected valid filter")
	}
	if filter["_id"] != oid || filter["userId"] != "alice" {
		t.Fatalf("unexpected filter: %#v", filter)
	}

	if _, ok := ownerFilter("alice", "not-an-object-id"); ok {
		t.Fatalf("malformed ids must not produce a filter")
	}
	if _, ok := ownerFilter("", oid.Hex()); ok {
		t.Fatalf("an empty owner must not produce a filter")
	}
}

func TestMongoIndexesLeadWithOwner(t *testing.T) {
	for _, idx := range append(noteIndexes(), taskIndexes()...) {
		keys, ok := idx.Keys.(bson.D)
		if !ok || len(keys) != 2 {
			t.Fatalf("unexpected index keys: %#v", idx.Keys)
		}
		if keys[0].Key != "userId" {
			t.Fatalf("index must lead with userId, got %s", keys[0].Key)
		}
	}
	if got := taskIndexes(); len(got) != 2 {
		t.Fatalf("expected two task indexes, got %d", len(got))
	}
}

func TestNoteDocRoundTrip(t *testing.T) {
	doc := noteDoc{ID: primitive.NewObjectID(), Title: "t", Content: "c", UserID: "alice", CreatedAt: baseTime, UpdatedAt: baseTime}
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded noteDoc
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	n := decoded.toDomain()
	if n.ID != doc.ID.Hex() || n.UserID != "alice" || !n.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected note: %+v", n)
	}
}

func TestMongoNoteLifecycleIsOwnerScoped(t *testing.T) {
	m, notes, _ := newTestMongo()
	ctx := context.Background()

	n, err := m.InsertNote(ctx, domain.Note{Title: "t", Content: "c", UserID: "alice", CreatedAt: baseTime, UpdatedAt: baseTime})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := primitive.ObjectIDFromHex(n.ID); err != nil {
		t.Fatalf("expected an object id, got %q", n.ID)
	}

	if got, err := m.GetNote(ctx, "bob", n.ID); err != nil || got != nil {
		t.Fatalf("get as bob: %+v, %v", got, err)
	}
	if got, err := m.ReplaceNote(ctx, "bob", n.ID, domain.NoteReplace{Title: "x", Content: "y", UpdatedAt: baseTime}); err != nil || got != nil {
		t.Fatalf("replace as bob: %+v, %v", got, err)
	}
	if got, err := m.DeleteNote(ctx, "bob", n.ID); err != nil || got != nil {
		t.Fatalf("delete as bob: %+v, %v", got, err)
	}
	if list, _ := m.ListNotes(ctx, "bob"); len(list) != 0 {
		t.Fatalf("bob lists alice's notes: %+v", list)
	}

	later := baseTime.Add(time.Minute)
	updated, err := m.ReplaceNote(ctx, "alice", n.ID, domain.NoteReplace{Title: "t2", Content: "c2", UpdatedAt: later})
	if err != nil || updated == nil {
		t.Fatalf("replace: %+v, %v", updated, err)
	}
	if updated.Title != "t2" || !updated.UpdatedAt.Equal(later) || !updated.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected updated note: %+v", updated)
	}

	deleted, err := m.DeleteNote(ctx, "alice", n.ID)
	if err != nil || deleted == nil || deleted.ID != n.ID {
		t.Fatalf("delete: %+v, %v", deleted, err)
	}
	if len(notes.docs) != 0 {
		t.Fatalf("document left behind: %v", notes.docs)
	}
	if notes.indexed != 1 {
		t.Fatalf("expected indexes created once, got %d", notes.indexed)
	}
}

func TestMongoTaskReplaceMismatchIsAbsent(t *testing.T) {
	m, _, _ := newTestMongo()
	ctx := context.Background()

	task, err := m.InsertTask(ctx, domain.Task{Title: "t", Priority: domain.PriorityLow, UserID: "alice", CreatedAt: baseTime, UpdatedAt: baseTime})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	replace := domain.TaskReplace{Title: "x", Priority: domain.PriorityHigh, Completed: true, UpdatedAt: baseTime}
	if got, err := m.ReplaceTask(ctx, "bob", task.ID, replace); err != nil || got != nil {
		t.Fatalf("replace as bob: %+v, %v", got, err)
	}
	if got, err := m.DeleteTask(ctx, "bob", task.ID); err != nil || got != nil {
		t.Fatalf("delete as bob: %+v, %v", got, err)
	}
	if got, err := m.ReplaceTask(ctx, "alice", "not-an-object-id", replace); err != nil || got != nil {
		t.Fatalf("replace malformed id: %+v, %v", got, err)
	}

	got, err := m.ReplaceTask(ctx, "alice", task.ID, replace)
	if err != nil || got == nil {
		t.Fatalf("replace: %+v, %v", got, err)
	}
	if !got.Completed || got.Priority != domain.PriorityHigh || got.Title != "x" {
		t.Fatalf("unexpected task: %+v", got)
	}
	tasks, err := m.ListTasks(ctx, "alice")
	if err != nil || len(tasks) != 1 || !tasks[0].Completed {
		t.Fatalf("unexpected list: %+v, %v", tasks, err)
	}
}

func TestNoDocumentIsAbsent(t *testing.T) {
	if err := noDocument(mongo.ErrNoDocuments); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	boom := errors.New("boom")
	if err := noDocument(boom); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}
