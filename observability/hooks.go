// Package observability provides optional logging and instrumentation hooks.
package observability

import (
	"context"
	"log"
	"time"
)

// Hooks provides optional callbacks for logging, metrics, and tracing without
// introducing dependencies in the core library. All functions are optional.
type Hooks struct {
	// Logf logs a structured message with a severity level and key-value fields.
	Logf func(ctx context.Context, level string, msg string, fields map[string]any)

	// OnEvent is called once a tool call event has been enqueued for the consumer.
	OnEvent func(ctx context.Context, toolCallID string, kind string)
	// OnDeprecated is called when a deprecated API is used.
	OnDeprecated func(ctx context.Context, name string, replacement string)

	// OnLLMRequest is called before a provider stream is opened.
	OnLLMRequest func(ctx context.Context, provider string, model string, meta map[string]any)
	// OnLLMResponse is called when a provider stream finishes.
	OnLLMResponse func(ctx context.Context, provider string, model string, latency time.Duration, meta map[string]any)
	// OnLLMRetry is called before a failed stream open is retried. attempt is
	// the number of the attempt about to run and err the failure that caused it.
	OnLLMRetry func(ctx context.Context, provider string, model string, attempt int, err error)
}

// SafeLog logs if Logf is configured.
func (h *Hooks) SafeLog(ctx context.Context, level string, msg string, fields map[string]any) {
	if h != nil && h.Logf != nil {
		h.Logf(ctx, level, msg, fields)
	}
}

// Log logs through Logf when configured and falls back to the standard logger otherwise.
func (h *Hooks) Log(ctx context.Context, level string, msg string, fields map[string]any) {
	if h != nil && h.Logf != nil {
		h.Logf(ctx, level, msg, fields)
		return
	}
	if len(fields) > 0 {
		log.Printf("[%s] %s %v", level, msg, fields)
		return
	}
	log.Printf("[%s] %s", level, msg)
}

// SafeEvent invokes OnEvent if configured.
func (h *Hooks) SafeEvent(ctx context.Context, toolCallID string, kind string) {
	if h != nil && h.OnEvent != nil {
		h.OnEvent(ctx, toolCallID, kind)
	}
}

// Deprecated reports use of a deprecated API. It invokes OnDeprecated when
// configured and always emits a warning log line.
func (h *Hooks) Deprecated(ctx context.Context, name string, replacement string) {
	if h != nil && h.OnDeprecated != nil {
		h.OnDeprecated(ctx, name, replacement)
	}
	h.Log(ctx, "warn", name+"() is deprecated. Use "+replacement+"() instead.", map[string]any{
		"deprecated":  name,
		"replacement": replacement,
	})
}

// SafeLLMRequest invokes OnLLMRequest if configured.
func (h *Hooks) SafeLLMRequest(ctx context.Context, provider string, model string, meta map[string]any) {
	if h != nil && h.OnLLMRequest != nil {
		h.OnLLMRequest(ctx, provider, model, meta)
	}
}

// SafeLLMResponse invokes OnLLMResponse if configured.
func (h *Hooks) SafeLLMResponse(ctx context.Context, provider string, model string, latency time.Duration, meta map[string]any) {
	if h != nil && h.OnLLMResponse != nil {
		h.OnLLMResponse(ctx, provider, model, latency, meta)
	}
}

// SafeLLMRetry invokes OnLLMRetry if configured.
func (h *Hooks) SafeLLMRetry(ctx context.Context, provider string, model string, attempt int, err error) {
	if h != nil && h.OnLLMRetry != nil {
		h.OnLLMRetry(ctx, provider, model, attempt, err)
	}
}
