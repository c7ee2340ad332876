// Package summarize talks to the language model that writes note summaries.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is Groq's OpenAI compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"

	systemPersona = "You are a helpful assistant that creates concise summaries of notes. " +
		"Provide a clear, brief summary that captures the key points."
)

// ErrUnavailable is returned when no summarization provider is configured.
var ErrUnavailable = errors.New("summarization unavailable")

// Config selects the provider endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIClient summarizes notes with a chat completion.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for cfg, filling in Groq defaults.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("summarize: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	log.WithFields(log.Fields{"model": model, "base_url": clientCfg.BaseURL}).Info("summarizer configured")
	return &OpenAIClient{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Summarize asks for a two to three sentence summary of the note. The
// caller bounds the call through ctx.
func (o *OpenAIClient) Summarize(ctx context.Context, title, content string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona},
			{Role: openai.ChatMessageRoleUser, Content: prompt(title, content)},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	log.WithField("finish_reason", resp.Choices[0].FinishReason).Debug("summary received")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func prompt(title, content string) string {
	var b strings.Builder
	b.WriteString("Please summarize the following note:\n\n")
	b.WriteString("Title: ")
	b.WriteString(title)
	b.WriteString("\nContent: ")
	b.WriteString(content)
	b.WriteString("\n\nProvide a concise summary in 2-3 sentences.")
	return b.String()
}

// Unavailable stands in when no provider is configured. Every call fails,
// so the note service answers with its placeholder.
type Unavailable struct{}

func (Unavailable) Summarize(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
