package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/dumb-meh/Sui-Amor/internal/telemetry"
	"github.com/dumb-meh/Sui-Amor/models"
)

// withRetry runs fn under a per-attempt deadline and retries transient
// failures with full-jitter exponential backoff. Permanent failures return
// immediately. The final error wraps the last transient failure so callers
// can still classify it.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := o.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		telemetry.ProviderCallsTotal.WithLabelValues(op).Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !models.IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		telemetry.ProviderRetriesTotal.WithLabelValues(op).Inc()
		backoff := computeBackoff(o.cfg.BaseBackoff, attempt)
		o.logger.Debug("transient failure, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s: exhausted %d attempts: %w", op, attempts, lastErr)
}

// computeBackoff returns a full-jitter exponential delay: uniform in
// (0, base*2^attempt], capped at 30s before jitter.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	max := base << uint(attempt)
	if cap := 30 * time.Second; max > cap {
		max = cap
	}
	if max <= 0 {
		max = base
	}
	return time.Duration(rand.Int63n(int64(max)) + 1)
}
