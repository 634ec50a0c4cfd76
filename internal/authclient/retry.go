package authclient

import (
	"context"
	"errors"
	"time"
)

// retryableError marks a failure worth another attempt. Classification of
// which failures those are lives in the client; the policy only counts.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	return &retryableError{err: err}
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// RetryPolicy runs a call at most MaxAttempts times in total. Terminal
// errors short-circuit; retryable ones are re-attempted until the budget
// runs out and the last failure is returned.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // optional fixed delay between attempts
}

func (p RetryPolicy) Do(ctx context.Context, call func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = call()
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return err
			}
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
