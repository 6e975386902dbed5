package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy defines how many times a connect operation is attempted and how long to
// wait between attempts. It is passed by value and never modified by Connect.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first one)
	MaxAttempts int
	// InitialDelay is the base delay used after the first failure
	InitialDelay time.Duration
	// OnRetry is called before each sleep for observability
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep blocks for the given duration (for testing, defaults to time.Sleep)
	Sleep func(d time.Duration)
}

// DefaultPolicy returns the policy used when nothing is configured:
// 8 attempts starting from a 500ms base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  8,
		InitialDelay: 500 * time.Millisecond,
	}
}

// Validate reports whether the policy can drive a retry run.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if p.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	return nil
}

// Delays returns the sleep durations between consecutive attempts, i.e. the
// wait before attempt 2, 3, ... MaxAttempts. The wait after failure i is
// i * InitialDelay * 2^(i-1).
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 || p.InitialDelay <= 0 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	delay := p.InitialDelay
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		out = append(out, mulSat(delay, attempt))
		delay = mulSat(delay, 2)
	}
	return out
}

// MaxWait returns the total time Connect may spend sleeping before it gives up.
func (p Policy) MaxWait() time.Duration {
	var total time.Duration
	for _, d := range p.Delays() {
		if total > math.MaxInt64-d {
			return math.MaxInt64
		}
		total += d
	}
	return total
}

// TransientError marks a failure that is expected to resolve on its own,
// such as a database that has not finished starting. Only errors carrying
// this marker are retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable. A nil error stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is marked transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RetriesExhaustedError is returned when every attempt failed transiently.
type RetriesExhaustedError struct {
	Attempts  int
	LastError error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retry: database unreachable after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastError
}

// Connect calls connect until it succeeds, returns an error that is not
// transient, or MaxAttempts calls have been made. After the i-th transient
// failure it sleeps i times the current delay and then doubles the delay.
//
// The delay is a local of this call, so reusing a Policy always starts from
// InitialDelay.
func Connect[T any](p Policy, connect func() (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		conn, err := connect()
		if err == nil {
			return conn, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			return zero, &RetriesExhaustedError{Attempts: attempt, LastError: err}
		}

		wait := mulSat(delay, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		sleep(wait)
		delay = mulSat(delay, 2)
	}
}

// mulSat multiplies d by n, clamping at the largest representable duration.
func mulSat(d time.Duration, n int) time.Duration {
	if n <= 0 || d <= 0 {
		return 0
	}
	if d > time.Duration(math.MaxInt64/int64(n)) {
		return math.MaxInt64
	}
	return d * time.Duration(n)
}
