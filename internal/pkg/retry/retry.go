package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/adilzhm/order-service/internal/config"
)

// Do runs fn up to retryPolicy.Attempts times with jittered exponential
// backoff between failures. It returns the last error, or ctx.Err() if the
// context is cancelled while waiting.
func Do(ctx context.Context, retryPolicy config.Retry, fn func() error) error {
	d := retryPolicy.Base
	var err error

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < retryPolicy.Attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		delay := d
		if retryPolicy.JitterFactor > 0 {
			jitter := 1 + retryPolicy.JitterFactor*(2*r.Float64()-1)
			delay = time.Duration(float64(delay) * jitter)
		}

		if retryPolicy.Max > 0 && delay > retryPolicy.Max {
			delay = retryPolicy.Max
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		d *= 2
		if retryPolicy.Max > 0 && d > retryPolicy.Max {
			d = retryPolicy.Max
		}
	}
	return err
}

// Forever keeps calling fn until it returns nil or the context is cancelled,
// doubling the delay between failures from base up to max. There is no attempt
// cap: it is meant for supervision loops that must outlive transient outages.
func Forever(ctx context.Context, base, max time.Duration, fn func() error) error {
	d := base
	for {
		if err := fn(); err == nil {
			return nil
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		d *= 2
		if max > 0 && d > max {
			d = max
		}
	}
}
