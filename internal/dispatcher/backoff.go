package dispatcher

import (
	"math/rand"
	"time"
)

// RetryPolicy controls how transient failures are retried
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64 // fraction of the base delay, e.g. 0.2
}

// Backoff returns the base delay before the given retry. attempt is the
// attempt that just failed, starting at 1. The delay doubles per attempt
// and is capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// WithJitter adds up to Jitter*d of random extra delay so retries from
// concurrent workers spread out instead of hammering in lockstep
func (p RetryPolicy) WithJitter(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*p.Jitter*float64(d))
}
