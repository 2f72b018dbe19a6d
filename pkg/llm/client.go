package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/teslashibe/go-g1/internal/log"
)

// Config holds client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Client implements Completer with the official openai-go SDK.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a client. BaseURL may point at any OpenAI-compatible server.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		return nil, ErrNoModel
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("llm")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

func (c *Client) params(msgs []Message, temperature float64) openai.ChatCompletionNewParams {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    out,
		Temperature: openai.Float(temperature),
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, c.params(msgs, temperature))
	if err != nil {
		return "", fmt.Errorf("llm: chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmpty
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("completion", "latency", time.Since(start), "chars", len(text))
	return text, nil
}

// Stream implements Completer.
func (c *Client) Stream(ctx context.Context, msgs []Message, temperature float64, onSentence func(string)) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stream := c.api.Chat.Completions.NewStreaming(ctx, c.params(msgs, temperature))
	defer stream.Close()

	var full strings.Builder
	sp := NewSplitter(onSentence)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		full.WriteString(delta)
		sp.Write(delta)
	}
	if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return strings.TrimSpace(full.String()), fmt.Errorf("llm: stream: %w", err)
	}
	sp.Flush()
	return strings.TrimSpace(full.String()), nil
}

var _ Completer = (*Client)(nil)
