// Package openai streams Chat Completions responses as provider-neutral
// deltas, including function tool call fragments.
package openai

import (
	"context"
	"net/http"
	"time"

	base "github.com/KamdynS/toolstream/llm"
	"github.com/KamdynS/toolstream/observability"
	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"
)

const provider = "openai"

// Client opens tool-call aware streams against the OpenAI Chat Completions API.
type Client struct {
	client  oa.Client
	cfg     Config
	retrier *base.Retrier
}

// Config configures the OpenAI client.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Retry        base.RetryConfig
	Organization string
	Hooks        *observability.Hooks
}

// NewClient creates an OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = base.DefaultRetryConfig()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient), option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	c := oa.NewClient(opts...)
	return &Client{client: c, cfg: cfg, retrier: base.NewRetrier(cfg.Retry)}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// ToolStream opens a streaming chat completion. Connection failures are
// retried; the returned stream reports errors seen after the first chunk.
func (c *Client) ToolStream(ctx context.Context, req *base.ChatRequest) (base.Stream, error) {
	params := toOAParams(req, c.cfg)
	model := string(params.Model)
	c.cfg.Hooks.SafeLLMRequest(ctx, provider, model, map[string]any{"operation": "tool_stream", "tools": len(params.Tools)})
	start := time.Now()

	var s *ssestream.Stream[oa.ChatCompletionChunk]
	attempt := 0
	var lastErr error
	err := c.retrier.Do(ctx, func() error {
		attempt++
		if lastErr != nil {
			c.cfg.Hooks.SafeLLMRetry(ctx, provider, model, attempt, lastErr)
		}
		s = c.client.Chat.Completions.NewStreaming(ctx, params)
		if err := s.Err(); err != nil {
			c.cfg.Hooks.SafeLog(ctx, "warn", "openai stream open failed", map[string]any{"attempt": attempt, "error": err.Error()})
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

func toOAParams(req *base.ChatRequest, cfg Config) oa.ChatCompletionNewParams {
	params := oa.ChatCompletionNewParams{Messages: toOAMessages(req)}
	if m := base.PickModel(req, cfg.Model); m != "" {
		params.Model = shared.ChatModel(m)
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = oa.Int(int64(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		params.Temperature = oa.Float(cfg.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOATools(req.Tools)
	}
	return params
}

func toOAMessages(req *base.ChatRequest) []oa.ChatCompletionMessageParamUnion {
	msgs := make([]oa.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oa.ChatCompletionMessageParamUnion{OfSystem: &oa.ChatCompletionSystemMessageParam{Content: oa.ChatCompletionSystemMessageParamContentUnion{OfString: oa.String(req.SystemPrompt)}}})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{OfAssistant: &oa.ChatCompletionAssistantMessageParam{Content: oa.ChatCompletionAssistantMessageParamContentUnion{OfString: oa.String(m.Content)}}})
		default:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{OfUser: &oa.ChatCompletionUserMessageParam{Content: oa.ChatCompletionUserMessageParamContentUnion{OfString: oa.String(m.Content)}}})
		}
	}
	return msgs
}

// toOATools converts function tool definitions to OpenAI function tools.
func toOATools(tools []base.Tool) []oa.ChatCompletionToolUnionParam {
	out := make([]oa.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		fn := shared.FunctionDefinitionParam{Name: t.Function.Name}
		if t.Function.Description != "" {
			fn.Description = oa.String(t.Function.Description)
		}
		if t.Function.Parameters != nil {
			fn.Parameters = t.Function.Parameters
		}
		out = append(out, oa.ChatCompletionFunctionTool(fn))
	}
	return out
}
