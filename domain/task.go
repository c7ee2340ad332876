package domain

import (
	"strings"
	"time"
)

// Priority ranks a task. The zero value is not a valid priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is applied when a task is created without one.
const DefaultPriority = PriorityMedium

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority normalises raw input. An empty value yields DefaultPriority.
func ParsePriority(raw string) (Priority, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultPriority, nil
	}
	p := Priority(raw)
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Message: "Priority must be one of low, medium, high"}
	}
	return p, nil
}

// Task is a prioritized to-do item owned by a single user.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskInput carries client supplied fields for create.
type TaskInput struct {
	Title       string
	Description string
	Priority    string
}

// TaskReplace carries every mutable field of a task. Updates overwrite all of them.
type TaskReplace struct {
	Title       string
	Description string
	Priority    Priority
	Completed   bool
	UpdatedAt   time.Time
}
