// Package client is a Go consumer of the workspace API, used by the
// dashboard and by end to end tests.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"workspace-api/domain"
)

// APIError is a non-success response. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client wraps http.Client with helpers for the JSON endpoints.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client. baseURL includes any route prefix, e.g.
// "https://host/api".
func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bearer:  bearer,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NoteInput is the body for note create and update.
type NoteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TaskInput is the body for task create. Empty fields take server defaults.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// TaskUpdate is the full replacement body for a task.
type TaskUpdate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
}

func (c *Client) ListNotes(ctx context.Context) ([]domain.Note, error) {
	var out []domain.Note
	err := c.do(ctx, http.MethodGet, "/notes", nil, &out)
	return out, err
}

func (c *Client) CreateNote(ctx context.Context, in NoteInput) (domain.Note, error) {
	var out domain.Note
	err := c.do(ctx, http.MethodPost, "/notes", in, &out)
	return out, err
}

func (c *Client) UpdateNote(ctx context.Context, id string, in NoteInput) (domain.Note, error) {
	var out domain.Note
	err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}

// SummarizeNote returns the note's summary. Provider outages come back as
// the server's placeholder text, not as an error.
func (c *Client) SummarizeNote(ctx context.Context, id string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.do(ctx, http.MethodPost, "/notes/"+url.PathEscape(id)+"/summarize", nil, &out)
	return out.Summary, err
}

func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var out []domain.Task
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPost, "/tasks", in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, in TaskUpdate) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return sonic.Unmarshal(data, out)
}

func apiError(status int, body []byte) *APIError {
	var e struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if err := sonic.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: status, Message: msg}
}
