package probes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/localai/pkg/log"
)

// ErrNotReady is returned when a probe never succeeds within the timeout.
var ErrNotReady = errors.New("dependency not ready")

// Backoff doubles from Base up to Max.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	failures int
}

// Next returns the wait before the next attempt and records a failure.
func (b *Backoff) Next() time.Duration {
	backoff := b.Base
	for i := 0; i < b.failures; i++ {
		if backoff >= b.Max {
			break
		}
		backoff *= 2
	}
	b.failures++
	if backoff > b.Max {
		backoff = b.Max
	}
	return backoff
}

// Reset forgets recorded failures.
func (b *Backoff) Reset() { b.failures = 0 }

// WaitReady runs prober until it succeeds, sleeping with exponential backoff
// between attempts. It fails with ErrNotReady once timeout elapses.
func WaitReady(ctx context.Context, prober Prober, cfg Config, logger log.Logger) error {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	if _, ok := prober.(*DelayProber); ok && cfg.Delay >= timeout {
		timeout = cfg.Delay + time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := &Backoff{Base: cfg.InitialInterval, Max: cfg.MaxInterval}
	if backoff.Base <= 0 {
		backoff.Base = DefaultConfig().InitialInterval
	}
	if backoff.Max < backoff.Base {
		backoff.Max = backoff.Base
	}

	attempt := 0
	var last ProbeResult
	for {
		attempt++
		last = prober.Execute(ctx)
		if last.Success {
			logger.Info("Dependency ready", log.Str("probe", string(cfg.Kind)), log.Int("attempts", attempt))
			return nil
		}

		wait := backoff.Next()
		logger.Debug("Dependency not ready", log.Str("reason", last.Message), log.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s (%d attempts): %s", ErrNotReady, timeout, attempt, last.Message)
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}
