package domain

import "time"

// Note is a short titled text owned by a single user.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteInput carries client supplied fields for create and update.
type NoteInput struct {
	Title   string
	Content string
}

// NoteReplace is the set of fields an update writes.
type NoteReplace struct {
	Title     string
	Content   string
	UpdatedAt time.Time
}
