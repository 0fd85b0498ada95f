package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/glasswallet/router/internal/models"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

var ErrCircuitOpen = errors.New("scoring circuit open")

type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

type scored struct {
	result  Result
	latency int64
}

// BreakerAdapter fails fast once the wrapped adapter keeps erroring, so a
// dead scoring service does not stall batch processing.
type BreakerAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker[scored]
}

func NewBreakerAdapter(inner Adapter, cfg BreakerConfig, logger zerolog.Logger) *BreakerAdapter {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[scored](gobreaker.Settings{
		Name:        "lead-scoring",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &BreakerAdapter{inner: inner, breaker: cb}
}

func (b *BreakerAdapter) ScoreLead(ctx context.Context, l models.Lead) (Result, int64, error) {
	out, err := b.breaker.Execute(func() (scored, error) {
		res, latency, err := b.inner.ScoreLead(ctx, l)
		return scored{result: res, latency: latency}, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, 0, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return Result{}, out.latency, err
	}
	return out.result, out.latency, nil
}

func (b *BreakerAdapter) State() gobreaker.State {
	return b.breaker.State()
}
