// Package anthropic streams Claude Messages API responses as provider-neutral
// deltas, including tool_use argument fragments.
package anthropic

import (
	"context"
	"net/http"
	"time"

	base "github.com/KamdynS/toolstream/llm"
	"github.com/KamdynS/toolstream/observability"
	anth "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const provider = "anthropic"

// Client opens tool-call aware streams against the Anthropic Messages API.
type Client struct {
	client  anth.Client
	cfg     Config
	retrier *base.Retrier
}

// Config configures the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       base.RetryConfig
	Hooks       *observability.Hooks
}

// NewClient creates an Anthropic client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = base.DefaultRetryConfig()
	}

	// retries are handled by the Retrier so they show up in hooks
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	c := anth.NewClient(opts...)
	return &Client{client: c, cfg: cfg, retrier: base.NewRetrier(cfg.Retry)}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// ToolStream opens a streaming Messages request. Connection failures are
// retried; the returned stream reports errors seen after the first event.
func (c *Client) ToolStream(ctx context.Context, req *base.ChatRequest) (base.Stream, error) {
	params := toAnthParams(req, c.cfg)
	model := string(params.Model)
	c.cfg.Hooks.SafeLLMRequest(ctx, provider, model, map[string]any{"operation": "tool_stream", "tools": len(params.Tools)})
	start := time.Now()

	var s *ssestream.Stream[anth.MessageStreamEventUnion]
	attempt := 0
	var lastErr error
	err := c.retrier.Do(ctx, func() error {
		attempt++
		if lastErr != nil {
			c.cfg.Hooks.SafeLLMRetry(ctx, provider, model, attempt, lastErr)
		}
		s = c.client.Messages.NewStreaming(ctx, params)
		if err := s.Err(); err != nil {
			c.cfg.Hooks.SafeLog(ctx, "warn", "anthropic stream open failed", map[string]any{"attempt": attempt, "error": err.Error()})
			_ = s.Close()
			lastErr = err
			return err
		}
		return nil
	})
	if err != nil {
		c.cfg.Hooks.SafeLLMResponse(ctx, provider, model, time.Since(start), map[string]any{"operation": "tool_stream", "error": true})
		return nil, err
	}
	return newDeltaStream(s, model, func(err error) {
		c.cfg.Hooks.SafeLLMResponse(ctx, provider, model, time.Since(start), map[string]any{"operation": "tool_stream", "error": err != nil})
	}), nil
}

func toAnthParams(req *base.ChatRequest, cfg Config) anth.MessageNewParams {
	msgs := make([]anth.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := anth.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anth.MessageParamRoleAssistant
		}
		msgs = append(msgs, anth.MessageParam{
			Role: role,
			Content: []anth.ContentBlockParamUnion{{
				OfText: &anth.TextBlockParam{Text: m.Content},
			}},
		})
	}
	params := anth.MessageNewParams{
		Messages:  msgs,
		MaxTokens: int64(cfg.MaxTokens),
		Model:     anth.Model(base.PickModel(req, cfg.Model)),
	}
	if req.SystemPrompt != "" {
		params.System = []anth.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthTools(req.Tools)
	}
	if cfg.Temperature > 0 {
		params.Temperature = anth.Float(cfg.Temperature)
	}
	return params
}

// toAnthTools converts function tool definitions into Anthropic tool params.
func toAnthTools(tools []base.Tool) []anth.ToolUnionParam {
	out := make([]anth.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		tp := &anth.ToolParam{Name: t.Function.Name}
		if t.Function.Description != "" {
			tp.Description = anth.String(t.Function.Description)
		}
		tp.InputSchema = anth.ToolInputSchemaParam{Type: "object"}
		if props, ok := t.Function.Parameters["properties"]; ok {
			tp.InputSchema.Properties = props
		}
		out = append(out, anth.ToolUnionParam{OfTool: tp})
	}
	return out
}
