package httpx

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
)

// Retry runs fn under a fresh per-attempt deadline. Timeouts are retried
// immediately until attempts are used up, then surface as KindTimeout. Any
// other error returns on the first failure, untouched.
func Retry[T any](ctx context.Context, attempts int, timeout time.Duration, op string, fn func(context.Context) (T, error), onRetry func(n uint, err error)) (T, error) {
	if attempts <= 0 {
		attempts = 1
	}
	out, err := retry.DoWithData(
		func() (T, error) {
			actx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return fn(actx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration { return 0 }),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return ctx.Err() == nil && errs.IsTimeout(err) }),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("httpx: %s timed out (try %d/%d): %v", op, n+1, attempts, err)
			if onRetry != nil {
				onRetry(n, err)
			}
		}),
	)
	if err != nil && errs.IsTimeout(err) && !errs.Is(err, errs.KindTimeout) {
		err = errs.E(errs.KindTimeout, op, err)
	}
	return out, err
}
