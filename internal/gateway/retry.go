package gateway

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const defaultRetryBase = time.Second

// retryPolicy is the shared gateway backoff: delays double from the base,
// no jitter, bounded by the caller's attempt count.
func retryPolicy(base time.Duration) *backoff.ExponentialBackOff {
	if base <= 0 {
		base = defaultRetryBase
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	return b
}
