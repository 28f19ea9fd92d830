package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	errs "imgscraper/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before retry number attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	return capAndJitter(delay, eb.MaxDelay, eb.JitterFactor)
}

// LinearBackoff grows the delay by Increment per attempt.
// With Increment equal to BaseDelay the delay is BaseDelay * attempt.
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return capAndJitter(delay, lb.MaxDelay, lb.JitterFactor)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

func capAndJitter(delay float64, maxDelay time.Duration, jitterFactor float64) time.Duration {
	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if jitterFactor > 0 {
		jitter := delay * jitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled
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

// ErrorTypeBackoff selects a backoff strategy from the type of the failure
type ErrorTypeBackoff struct {
	RateLimitBackoff BackoffStrategy
	// TransientBackoff covers network errors, 5xx responses and suspect downloads
	TransientBackoff BackoffStrategy
	DefaultBackoff   BackoffStrategy
}

// NewErrorTypeBackoff builds the acquisition policy: throttling waits
// rateLimitDelay * attempt, any other transient failure waits transientDelay.
func NewErrorTypeBackoff(rateLimitDelay, transientDelay, maxDelay time.Duration) *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		RateLimitBackoff: &LinearBackoff{
			BaseDelay: rateLimitDelay,
			Increment: rateLimitDelay,
			MaxDelay:  maxDelay,
		},
		TransientBackoff: &ConstantBackoff{Delay: transientDelay},
		DefaultBackoff:   &ConstantBackoff{Delay: transientDelay},
	}
}

// Strategy names accepted by NewBackoff
const (
	StrategyLinear      = "linear"
	StrategyExponential = "exponential"
	StrategyConstant    = "constant"
)

// Strategies lists the accepted strategy names
var Strategies = []string{StrategyLinear, StrategyExponential, StrategyConstant}

// NewBackoff builds the per-error-type policy for a named strategy.
// linear is the NewErrorTypeBackoff policy. exponential doubles both delays
// on every attempt with 10% jitter. constant never grows either delay.
func NewBackoff(strategy string, rateLimitDelay, transientDelay, maxDelay time.Duration) (*ErrorTypeBackoff, error) {
	switch strategy {
	case "", StrategyLinear:
		return NewErrorTypeBackoff(rateLimitDelay, transientDelay, maxDelay), nil
	case StrategyExponential:
		return &ErrorTypeBackoff{
			RateLimitBackoff: &ExponentialBackoff{BaseDelay: rateLimitDelay, MaxDelay: maxDelay, Multiplier: 2, JitterFactor: 0.1},
			TransientBackoff: &ExponentialBackoff{BaseDelay: transientDelay, MaxDelay: maxDelay, Multiplier: 2, JitterFactor: 0.1},
			DefaultBackoff:   &ConstantBackoff{Delay: transientDelay},
		}, nil
	case StrategyConstant:
		return &ErrorTypeBackoff{
			RateLimitBackoff: &ConstantBackoff{Delay: rateLimitDelay},
			TransientBackoff: &ConstantBackoff{Delay: transientDelay},
			DefaultBackoff:   &ConstantBackoff{Delay: transientDelay},
		}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q (want one of %v)", strategy, Strategies)
	}
}

// NextDelay implements BackoffStrategy using the default strategy
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// DelayFor returns the delay before retrying after err on the given attempt
func (etb *ErrorTypeBackoff) DelayFor(err error, attempt int) time.Duration {
	return etb.GetBackoffForError(errs.TypeOf(err)).NextDelay(attempt)
}

// GetBackoffForError returns the appropriate backoff strategy for the error type
func (etb *ErrorTypeBackoff) GetBackoffForError(errorType errs.ErrorType) BackoffStrategy {
	switch errorType {
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	case errs.ErrorTypeNetwork, errs.ErrorTypeServerError, errs.ErrorTypeValidationSuspect:
		return etb.TransientBackoff
	default:
		return etb.DefaultBackoff
	}
}
