// Package genai wraps the chat-completion API used to turn natural-language
// questions into SQL. It owns the transport concerns (timeouts, error
// classification); prompt content and response parsing stay with callers.
package genai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"commerce-insights/internal/common/config"
	internalhttp "commerce-insights/internal/common/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion reports that the provider answered successfully but
// returned no usable content. Distinct from transport failures so callers do
// not burn retry budget on it.
var ErrEmptyCompletion = errors.New("chat completion returned no content")

// ChatClient is the completion surface the pipeline depends on.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// OpenAIClient is the production ChatClient backed by an OpenAI-compatible
// endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds a client from config. BaseURL may point at any
// OpenAI-compatible gateway; empty means the public API.
func NewOpenAIClient(cfg config.GenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai: api key is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	// Backstop slightly above the per-call deadline so the context, not the
	// transport, is what cancels a slow attempt.
	clientCfg.HTTPClient = internalhttp.NewClient(timeout + 5*time.Second)

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// Complete sends one system+user exchange and returns the raw assistant
// content. Requests JSON-object output at near-zero temperature; the
// per-call timeout bounds each attempt independently of the caller's
// deadline.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		// The field is omitempty, so an exact zero would fall back to
		// the provider default of 1.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
