package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// withLock runs fn under the scope's exclusive sync lock. The lock is
// released on every exit path; if the process dies first, the TTL lets a
// later run reclaim it. A live lock held elsewhere surfaces as
// domain.ErrSyncInProgress without running fn.
func (s *Service) withLock(ctx context.Context, scope domain.Scope, fn func(ctx context.Context) error) error {
	if _, err := s.locks.Acquire(ctx, scope, s.cfg.LockTTL); err != nil {
		return err
	}
	defer func() {
		// Release must not be skipped because the run's context expired.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, scope); err != nil {
			s.log.ErrorContext(ctx, "release sync lock failed",
				slog.String("scope", scope.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	return fn(ctx)
}

// remoteCaller wraps outbound remote calls with rate limiting, a
// per-call timeout, and bounded retries with exponential backoff.
type remoteCaller struct {
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
}

// call runs fn until it succeeds or the retry budget is exhausted. The
// per-call timeout is local to one attempt; run cancellation stops the
// retry loop immediately.
func (c *remoteCaller) call(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(attempt, bo); err != nil {
		return fmt.Errorf("remote call: %w", err)
	}
	return nil
}
