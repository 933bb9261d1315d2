package llm

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls retry behavior when opening a provider stream.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryConfig returns sane defaults for provider retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier performs bounded exponential backoff retries for a function.
type Retrier struct {
	cfg RetryConfig
}

// NewRetrier creates a new Retrier with the given config (or defaults if zero values).
func NewRetrier(cfg RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	return &Retrier{cfg: cfg}
}

// Do runs fn and retries on error up to MaxRetries with exponential backoff.
// Streams are only retried while opening; once deltas flow, a failure is
// returned to the caller since partial tool arguments cannot be replayed.
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	attempt := 0
	delay := r.cfg.InitialDelay
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= r.cfg.MaxRetries {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		attempt++
		next := time.Duration(float64(delay) * r.cfg.BackoffFactor)
		if next > r.cfg.MaxDelay {
			next = r.cfg.MaxDelay
		}
		// overflow
		if next < 0 || next > time.Duration(math.MaxInt64) {
			next = r.cfg.MaxDelay
		}
		delay = next
	}
}
