// Package resilience retries transient backend failures with exponential
// backoff. The engine talks to three remote services that shed load under
// pressure: the language model, the embedding endpoint, and the vector
// index. Retrying inside the turn's deadline smooths over 429s and brief
// outages without surfacing them to the conversation.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Config bounds the retry loop. Zero values fall back to the Backend
// preset's defaults.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the sleep before the first retry; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt sleep.
	MaxDelay time.Duration
	// Jitter spreads each sleep by up to this fraction in either direction.
	Jitter float64
}

// Backend is the preset used for outbound API calls. Delays stay short
// because every call already runs under a per-turn deadline.
func Backend() Config {
	return Config{
		Attempts:  3,
		BaseDelay: 250 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Jitter:    0.2,
	}
}

func (c Config) withDefaults() Config {
	d := Backend()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

func (c Config) delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if limit := float64(c.MaxDelay); d > limit {
		d = limit
	}
	if c.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * c.Jitter * d
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, the error is not transient, attempts run
// out, or the context ends. op names the call in retry logs. The last
// error is returned unwrapped so callers can keep classifying it.
func Do[T any](ctx context.Context, cfg Config, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !Transient(err) || attempt >= cfg.Attempts {
			return zero, err
		}

		delay := cfg.delay(attempt)
		zap.L().Warn("transient backend failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}
