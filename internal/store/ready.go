package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

// WaitReady pings a freshly opened backend until it answers, backing off
// exponentially. It is only used at startup; record writes are never retried.
func WaitReady(ctx context.Context, name string, attempts uint64, ping func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(250*time.Millisecond))
	backoff = retry.WithCappedDuration(5*time.Second, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			log.WithFields(log.Fields{"backend": name, "attempt": attempt}).WithError(err).Debug("store not ready")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return nil
}
