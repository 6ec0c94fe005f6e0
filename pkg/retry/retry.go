package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Common errors
var (
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
	ErrContextCanceled     = errors.New("context canceled during retry")
)

// Policy is a bounded retry policy with capped exponential backoff.
// It is a value shared by every call site that retries the same dependency.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first (minimum 1)
	MaxAttempts int
	// InitialInterval is the wait before the first retry
	InitialInterval time.Duration
	// MaxInterval caps every wait
	MaxInterval time.Duration
	// Multiplier grows the wait after each retry
	Multiplier float64
	// JitterFactor is the ± fraction of random jitter applied to each wait (0-1)
	JitterFactor float64
}

// DefaultPolicy returns 4 attempts with 1s, 2s, 4s waits (±10%), capped at 30s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Normalize returns a copy with defaults applied to zero or out-of-range fields
func (p Policy) Normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 30 * time.Second
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	if p.JitterFactor < 0 {
		p.JitterFactor = 0
	}
	if p.JitterFactor > 1 {
		p.JitterFactor = 1
	}
	return p
}

// Backoff returns the wait before retry number n (n starts at 1)
func (p Policy) Backoff(n int) time.Duration {
	p = p.Normalize()
	if n < 1 {
		n = 1
	}

	interval := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(n-1))
	if p.JitterFactor > 0 {
		jitter := interval * p.JitterFactor
		interval += (rand.Float64()*2 - 1) * jitter
	}
	if interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}
	if interval <= 0 {
		interval = float64(p.InitialInterval)
	}
	return time.Duration(interval)
}

// Wait blocks for Backoff(n) or until ctx is done
func (p Policy) Wait(ctx context.Context, n int) error {
	timer := time.NewTimer(p.Backoff(n))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ErrContextCanceled
	case <-timer.C:
		return nil
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// RetryableError marks an error as transient
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks an error as retryable
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as permanent
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable reports whether err was marked with Retryable
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Result contains the outcome of Do
type Result struct {
	// Err is the final error (nil if successful)
	Err error
	// Attempts is the number of attempts made
	Attempts int
	// TotalDuration is the time spent including waits
	TotalDuration time.Duration
	// LastError is the error returned by the last attempt
	LastError error
}

// Callback is called before each wait with the retry number, the failure and the wait
type Callback func(retry int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, or the policy is exhausted
func Do(ctx context.Context, p Policy, op Operation, cb Callback) *Result {
	p = p.Normalize()
	start := time.Now()
	result := &Result{}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.Err = ErrContextCanceled
			break
		}

		err := op(ctx)
		if err == nil {
			result.Err = nil
			result.TotalDuration = time.Since(start)
			return result
		}
		result.LastError = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			result.Err = perm.Err
			result.LastError = perm.Err
			break
		}

		if attempt == p.MaxAttempts {
			result.Err = ErrMaxAttemptsExceeded
			break
		}

		wait := p.Backoff(attempt)
		if cb != nil {
			cb(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = ErrContextCanceled
			result.TotalDuration = time.Since(start)
			return result
		case <-timer.C:
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}
