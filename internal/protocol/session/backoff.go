package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay returns the retry delay for attempt N (1-based).
func (cfg BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		mult := math.Max(cfg.Multiplier, 1.0)
		delay *= math.Pow(mult, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Wait sleeps for the attempt's delay or until ctx is done.
func (cfg BackoffConfig) Wait(ctx context.Context, attempt int, rng *rand.Rand) error {
	timer := time.NewTimer(cfg.Delay(attempt, rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
