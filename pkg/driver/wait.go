package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

const DefaultWaitPollInterval = 500 * time.Millisecond

type statusFunc func(ctx context.Context) (target.Status, error)

// WaitForStatus polls until the target reports the desired status or timeout expires.
// Query errors are retried until the deadline; the last one is attached to the timeout error.
func WaitForStatus(ctx context.Context, query statusFunc, desired target.Status, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWaitPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStatus target.Status
	var lastErr error
	for {
		status, err := query(waitCtx)
		if err == nil && status == desired {
			return nil
		}
		lastStatus, lastErr = status, err

		select {
		case <-waitCtx.Done():
			if ctx.Err() == context.Canceled {
				return errors.NewCancelledError("wait for status cancelled", ctx.Err())
			}
			return errors.NewTimeoutError(
				fmt.Sprintf("target did not reach %s within %v, last status: %s", desired, timeout, lastStatus),
				lastErr,
			)
		case <-ticker.C:
		}
	}
}
