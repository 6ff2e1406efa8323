package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "photosync/pkg/errors"
)

// BackoffStrategy computes the pause before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows BaseDelay by Multiplier per attempt up to
// MaxDelay, then spreads the result by ±JitterFactor.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at one second and caps at one minute
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.JitterFactor > 0 {
		spread := delay * eb.JitterFactor
		delay += rand.Float64()*2*spread - spread
	}
	return time.Duration(math.Max(delay, 0))
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay unless ctx ends first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a strategy from the kind of a typed error
type ErrorTypeBackoff struct {
	ByType  map[errs.ErrorType]BackoffStrategy
	Default BackoffStrategy
}

// NewErrorTypeBackoff waits longest on quota errors, since the photo
// service's per-minute quota only recovers with time.
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		ByType: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeNetwork: &ExponentialBackoff{
				BaseDelay:    time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
				JitterFactor: 0.2,
			},
			errs.ErrorTypeRateLimit: &ExponentialBackoff{
				BaseDelay:    10 * time.Second,
				MaxDelay:     2 * time.Minute,
				Multiplier:   2.0,
				JitterFactor: 0.3,
			},
			errs.ErrorTypeServerError: &ExponentialBackoff{
				BaseDelay:    5 * time.Second,
				MaxDelay:     time.Minute,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
		},
		Default: DefaultExponentialBackoff(),
	}
}

// For returns the strategy for t, falling back to Default
func (b *ErrorTypeBackoff) For(t errs.ErrorType) BackoffStrategy {
	if s, ok := b.ByType[t]; ok && s != nil {
		return s
	}
	return b.Default
}
