package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/coverscope/harvest/pkg/browser"
	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// PolicyFromConfig converts the persisted retry settings.
func PolicyFromConfig(rc config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   time.Duration(rc.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(rc.MaxDelayMs) * time.Millisecond,
	}
}

// Validator recovers an expired session before a retry. Implemented by
// browser.Session.
type Validator interface {
	EnsureValid(ctx context.Context) error
}

// Retrier wraps single navigation/extraction attempts with bounded
// retry, exponential backoff, and session refresh. One unified attempt
// counter covers transient failures and expiry-triggered re-logins.
type Retrier struct {
	policy  Policy
	session Validator
	log     *logging.Logger

	// OnReauth is invoked after a retry cycle that recovered the
	// session from expiry. Optional.
	OnReauth func()

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a retry controller bound to one session.
func NewRetrier(policy Policy, session Validator) *Retrier {
	log, _ := logging.NewLogger("retry")
	return &Retrier{
		policy:  policy,
		session: session,
		log:     log,
		sleep:   sleepCtx,
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the retrier surfaces it immediately
// instead of burning attempts on a structural failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op under the retry policy. Transient failures back off
// exponentially (base * 2^(attempt-1), capped) and the session is
// revalidated before each retry; an attempt that failed on
// redirect-to-login re-authenticates inside the same budget. Returns
// the op's result, the unwrapped permanent error, or RetryExhausted.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}

		wasExpiry := errors.Is(err, browser.ErrSessionExpired)
		r.log.Warnf("attempt %d/%d failed: %v", attempt, r.policy.MaxAttempts, err)

		if !wasExpiry {
			// Expiry recovery needs no delay; the failure was not
			// server flakiness.
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return err
			}
		}

		if err := r.session.EnsureValid(ctx); err != nil {
			var authErr *browser.AuthError
			if errors.As(err, &authErr) && authErr.Reason == browser.ReasonInvalidCredentials {
				// Credentials went bad; no retry recovers that.
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Probe itself hit a transient failure; spend another
			// attempt on it.
			lastErr = err
			continue
		}

		if wasExpiry && r.OnReauth != nil {
			r.OnReauth()
		}
	}

	return &RetryExhausted{Attempts: r.policy.MaxAttempts, LastErr: lastErr}
}

// backoff computes the capped exponential delay for a completed attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.BaseDelay << (attempt - 1)
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	return d
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
