package retries

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ManageRetries invokes fn until it reports that no retry is required, until
// maxAttempts have failed, or until the context is canceled. fn returns a bool
// indicating whether a failed attempt should be retried along with the error
// from that attempt. Delays between attempts grow exponentially, with jitter,
// and never exceed maxBackoff.
func ManageRetries(
	ctx context.Context,
	logger *zap.Logger,
	process string,
	maxAttempts uint8,
	maxBackoff time.Duration,
	fn func() (bool, error),
) error {
	var failedAttempts uint8
	for {
		retry, err := fn()
		if !retry {
			return err
		}
		failedAttempts++
		if failedAttempts >= maxAttempts {
			return errors.Wrapf(
				err,
				"failed %d attempt(s) to %s",
				failedAttempts,
				process,
			)
		}
		delay := JitteredExpBackoff(failedAttempts, maxBackoff)
		logger.Warn(
			"attempt failed; will retry",
			zap.String("process", process),
			zap.Uint8("failedAttempts", failedAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// JitteredExpBackoff returns a delay of roughly 2^failureCount seconds, capped
// at maxDelay, with up to half of it randomly shaved off.
func JitteredExpBackoff(
	failureCount uint8,
	maxDelay time.Duration,
) time.Duration {
	base := math.Pow(2, float64(failureCount))
	capped := math.Min(base, maxDelay.Seconds())
	jittered := (1 + rand.Float64()) * (capped / 2)
	scaled := jittered * float64(time.Second)
	return time.Duration(scaled)
}
