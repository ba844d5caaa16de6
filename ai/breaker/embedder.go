// Package breaker wraps an ai.Embedder in a circuit breaker so a failing
// embedding service is shed quickly instead of stalling every job.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/core"
)

// Config controls when the breaker opens and how long it stays open.
type Config struct {
	Name string
	// ConsecutiveFailures trips the breaker. Default 5.
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open before probing. Default 30s.
	Cooldown time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open. Default 1.
	HalfOpenRequests uint32
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		Name:                "embedder",
		ConsecutiveFailures: 5,
		Cooldown:            30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// Embedder is an ai.Embedder guarded by a circuit breaker.
type Embedder struct {
	next   ai.Embedder
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Wrap guards next with a breaker built from cfg. Zero fields take defaults.
func Wrap(next ai.Embedder, cfg Config) *Embedder {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}

	logger := slog.Default().With("component", "breaker", "name", cfg.Name)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		},
		// A caller giving up says nothing about the service's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Embedder{next: next, cb: cb, logger: logger}
}

// State reports the breaker state.
func (e *Embedder) State() gobreaker.State {
	return e.cb.State()
}

// EmbedText embeds text unless the breaker is open.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := e.cb.Execute(func() (interface{}, error) {
		return e.next.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, e.translate(err)
	}
	return out.([]float32), nil
}

// EmbedTexts embeds texts unless the breaker is open.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.cb.Execute(func() (interface{}, error) {
		return e.next.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return nil, e.translate(err)
	}
	return out.([][]float32), nil
}

func (e *Embedder) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e.logger.Debug("request rejected", "err", err)
		return core.NewUpstreamError("embedding service unavailable", err)
	}
	return err
}
