package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// SummaryUnavailable is returned in place of a summary when the summarizer fails.
const SummaryUnavailable = "AI summarization is currently unavailable. This is a mock summary of your note content."

const defaultSummaryTimeout = 15 * time.Second

// NoteStorage defines the document store primitives the note service needs.
// Every method is scoped to userID; a record owned by anyone else is absent.
type NoteStorage interface {
	ListNotes(ctx context.Context, userID string) ([]Note, error)
	GetNote(ctx context.Context, userID, id string) (*Note, error)
	InsertNote(ctx context.Context, n Note) (Note, error)
	ReplaceNote(ctx context.Context, userID, id string, r NoteReplace) (*Note, error)
	DeleteNote(ctx context.Context, userID, id string) (*Note, error)
}

// Summarizer produces a short synopsis of a note.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
}

// SummaryResult tags whether Text came from the summarizer or is the fallback.
type SummaryResult struct {
	OK   bool
	Text string
}

// NoteService applies the owner scoped CRUD contract to notes.
type NoteService struct {
	st             NoteStorage
	summarizer     Summarizer
	events         EventPublisher
	summaryTimeout time.Duration
	now            func() time.Time
}

// NewNoteService builds a NoteService. A nil summarizer makes every summary
// degrade to SummaryUnavailable; a nil publisher drops events.
func NewNoteService(st NoteStorage, summarizer Summarizer, events EventPublisher) *NoteService {
	if events == nil {
		events = NopPublisher{}
	}
	return &NoteService{
		st:             st,
		summarizer:     summarizer,
		events:         events,
		summaryTimeout: defaultSummaryTimeout,
		now:            now,
	}
}

// SetSummaryTimeout bounds each summarizer call. Non-positive values are ignored.
func (s *NoteService) SetSummaryTimeout(d time.Duration) {
	if d > 0 {
		s.summaryTimeout = d
	}
}

// List returns the caller's notes, most recently modified first.
func (s *NoteService) List(ctx context.Context, userID string) ([]Note, error) {
	notes, err := s.st.ListNotes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// Create validates in and persists a new note owned by userID.
func (s *NoteService) Create(ctx context.Context, userID string, in NoteInput) (Note, error) {
	if err := validateNote(in); err != nil {
		return Note{}, err
	}
	ts := s.now()
	n, err := s.st.InsertNote(ctx, Note{
		Title:     in.Title,
		Content:   in.Content,
		UserID:    userID,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	publish(ctx, s.events, newEvent(NoteCreated, EntityNote, n.ID, userID, ts, n))
	return n, nil
}

var errEmptySummary = errors.New("empty summary")

// Update replaces the title and content of the caller's note id. Ownership
// is checked before the body.
func (s *NoteService) Update(ctx context.Context, userID, id string, in NoteInput) (Note, error) {
	prev, err := s.st.GetNote(ctx, userID, id)
	if err != nil {
		return Note{}, fmt.Errorf("get note %s: %w", id, err)
	}
	if prev == nil {
		return Note{}, ErrNotFound
	}
	if err := validateNote(in); err != nil {
		return Note{}, err
	}
	ts := s.now()
	n, err := s.st.ReplaceNote(ctx, userID, id, NoteReplace{Title: in.Title, Content: in.Content, UpdatedAt: ts})
	if err != nil {
		return Note{}, fmt.Errorf("update note %s: %w", id, err)
	}
	if n == nil {
		return Note{}, ErrNotFound
	}
	publish(ctx, s.events, newEvent(NoteUpdated, EntityNote, n.ID, userID, ts, n))
	return *n, nil
}

// Delete removes the caller's note id.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.st.DeleteNote(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if n == nil {
		return ErrNotFound
	}
	publish(ctx, s.events, newEvent(NoteDeleted, EntityNote, n.ID, userID, s.now(), nil))
	return nil
}

// Summarize asks the summarizer for a synopsis of the caller's note id. Only
// the lookup can fail; summarizer errors produce SummaryUnavailable.
func (s *NoteService) Summarize(ctx context.Context, userID, id string) (SummaryResult, error) {
	n, err := s.st.GetNote(ctx, userID, id)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("get note %s: %w", id, err)
	}
	if n == nil {
		return SummaryResult{}, ErrNotFound
	}
	if s.summarizer == nil {
		return SummaryResult{Text: SummaryUnavailable}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()
	text, err := s.summarizer.Summarize(sctx, n.Title, n.Content)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptySummary
	}
	if err != nil {
		log.WithFields(log.Fields{"note": id, "user": userID}).WithError(err).Warn("summarize note failed")
		return SummaryResult{Text: SummaryUnavailable}, nil
	}
	return SummaryResult{OK: true, Text: strings.TrimSpace(text)}, nil
}

func validateNote(in NoteInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return required("title", "Title and content are required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return required("content", "Title and content are required")
	}
	return nil
}

// now truncates to milliseconds so timestamps survive every backend unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
