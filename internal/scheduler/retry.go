package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"go.uber.org/zap"
)

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// the attempt budget is spent. Only errors flagged Retryable by the domain
// (serialization failures, lost optimistic locks, lock contention) are retried.
func (s *Scheduler) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.parameters.RetryInitialInterval
	b.MaxInterval = s.parameters.RetryMaxInterval
	b.MaxElapsedTime = 0

	attempts := s.parameters.RetryAttempts
	if attempts < 0 {
		attempts = 0
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if domain.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		s.metrics.ObserveRetry(op)
		s.logger.Debug("retrying after transient conflict",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}
