package migrate

import (
	"context"
	"time"

	"github.com/caredata/migrator/pkg/logger"
)

// withRetry runs op, retrying connector failures up to maxRetries with
// exponential backoff (delay, 2*delay, 4*delay, ...). Record-level
// errors are never passed through here; only connector operations are.
func withRetry(ctx context.Context, op string, maxRetries int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return &ConnectorError{Op: op, Err: err}
		}

		wait := delay << attempt
		logger.Warnf("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, maxRetries, wait, err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return &ConnectorError{Op: op, Err: ctx.Err()}
		}
	}
}
