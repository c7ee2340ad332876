package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"workspace-api/domain"
)

const (
	notesCollection = "notes"
	tasksCollection = "tasks"
)

// collection is the subset of a MongoDB collection the adapter needs.
type collection interface {
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	FindOneAndDelete(ctx context.Context, filter any, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult
	createIndexes(ctx context.Context, models []mongo.IndexModel) error
}

type mongoCollection struct {
	*mongo.Collection
}

func (c mongoCollection) createIndexes(ctx context.Context, models []mongo.IndexModel) error {
	_, err := c.Indexes().CreateMany(ctx, models)
	return err
}

// Mongo keeps notes and tasks in two MongoDB collections. Every filter
// carries the owner id next to the document id.
type Mongo struct {
	client *mongo.Client
	notes  collection
	tasks  collection

	mu      sync.Mutex
	indexed bool
}

type noteDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	UserID    string             `bson:"userId"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d noteDoc) toDomain() domain.Note {
	return domain.Note{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Content:   d.Content,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Priority    string             `bson:"priority"`
	Completed   bool               `bson:"completed"`
	UserID      string             `bson:"userId"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d taskDoc) toDomain() domain.Task {
	return domain.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Priority:    domain.Priority(d.Priority),
		Completed:   d.Completed,
		UserID:      d.UserID,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// NewMongo creates a pooled client for uri. The driver connects lazily, so
// this does not block on the server being reachable.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetTimeout(30 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	db := client.Database(database)
	return &Mongo{
		client: client,
		notes:  mongoCollection{db.Collection(notesCollection)},
		tasks:  mongoCollection{db.Collection(tasksCollection)},
	}, nil
}

// Close disconnects the pool.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the list indexes. It is safe to call repeatedly.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexed {
		return nil
	}
	if err := m.notes.createIndexes(ctx, noteIndexes()); err != nil {
		return fmt.Errorf("note indexes: %w", err)
	}
	if err := m.tasks.createIndexes(ctx, taskIndexes()); err != nil {
		return fmt.Errorf("task indexes: %w", err)
	}
	m.indexed = true
	return nil
}

func noteIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
}

func taskIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completed", Value: 1}}},
	}
}

// ownerFilter matches id only when it belongs to userID. ok is false when id
// cannot be a document id at all.
func ownerFilter(userID, id string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil || userID == "" {
		return nil, false
	}
	return bson.M{"_id": oid, "userId": userID}, true
}

func (m *Mongo) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.notes.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []noteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, d.toDomain())
	}
	return notes, nil
}

func (m *Mongo) GetNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	var doc noteDoc
	if err := m.notes.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	n := doc.toDomain()
	return &n, nil
}

func (m *Mongo) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	if err := m.EnsureIndexes(ctx); err != nil {
		return domain.Note{}, err
	}
	doc := noteDoc{
		ID:        primitive.NewObjectID(),
		Title:     n.Title,
		Content:   n.Content,
		UserID:    n.UserID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if _, err := m.notes.InsertOne(ctx, doc); err != nil {
		return domain.Note{}, err
	}
	return doc.toDomain(), nil
}

func (m *Mongo) ReplaceNote(ctx context.Context, userID, id string, r domain.NoteReplace) (*domain.Note, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	update := bson.M{"$set": bson.M{"title": r.Title, "content": r.Content, "updatedAt": r.UpdatedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc noteDoc
	if err := m.notes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	n := doc.toDomain()
	return &n, nil
}

func (m *Mongo) DeleteNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	var doc noteDoc
	if err := m.notes.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	n := doc.toDomain()
	return &n, nil
}

func (m *Mongo) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.tasks.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toDomain())
	}
	return tasks, nil
}

func (m *Mongo) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	var doc taskDoc
	if err := m.tasks.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	t := doc.toDomain()
	return &t, nil
}

func (m *Mongo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := m.EnsureIndexes(ctx); err != nil {
		return domain.Task{}, err
	}
	doc := taskDoc{
		ID:          primitive.NewObjectID(),
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   t.Completed,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if _, err := m.tasks.InsertOne(ctx, doc); err != nil {
		return domain.Task{}, err
	}
	return doc.toDomain(), nil
}

func (m *Mongo) ReplaceTask(ctx context.Context, userID, id string, r domain.TaskReplace) (*domain.Task, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	update := bson.M{"$set": bson.M{
		"title":       r.Title,
		"description": r.Description,
		"priority":    string(r.Priority),
		"completed":   r.Completed,
		"updatedAt":   r.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc taskDoc
	if err := m.tasks.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	t := doc.toDomain()
	return &t, nil
}

func (m *Mongo) DeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	filter, ok := ownerFilter(userID, id)
	if !ok {
		return nil, nil
	}
	var doc taskDoc
	if err := m.tasks.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return nil, noDocument(err)
	}
	t := doc.toDomain()
	return &t, nil
}

// noDocument turns the driver's "no match" into the nil,nil absent result.
func noDocument(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}
