// Package llm wraps the chat completion capability used by the rent extractor.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

// Options tune a single completion
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Completer turns a system and a user prompt into model text
type Completer interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
	Enabled() bool
}

// OpenAI implements Completer against the chat completions API
type OpenAI struct {
	client  *openai.Client
	model   string
	enabled bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI creates a client. Without an API key the client stays disabled
// and every call returns domain.ErrModelDisabled.
func NewOpenAI(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		enabled: cfg.Enabled && cfg.APIKey != "",
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Enabled reports whether completions will actually be requested
func (o *OpenAI) Enabled() bool {
	return o != nil && o.enabled
}

// Complete sends one chat completion request and returns the first choice
func (o *OpenAI) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	if !o.Enabled() {
		return "", domain.ErrModelDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: requestTemperature(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	o.logger.Debug("chat completion done",
		"model", o.model,
		"duration", time.Since(start),
		"tokens", resp.Usage.TotalTokens)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// requestTemperature keeps a zero temperature on the wire. The request field
// is omitempty, so 0 would fall back to the API default of 1.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
