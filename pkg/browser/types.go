package browser

import (
	"errors"
	"fmt"
)

// AuthState tracks where a session is in its authentication lifecycle.
type AuthState string

const (
	// StateUnauthenticated is the initial state before login.
	StateUnauthenticated AuthState = "unauthenticated"

	// StateAuthenticated means the last navigation confirmed a live login.
	StateAuthenticated AuthState = "authenticated"

	// StateExpired means a navigation detected a redirect to the login
	// surface; the session can be recovered by re-authenticating.
	StateExpired AuthState = "expired"

	// StateClosed is terminal; the browser handle has been released.
	StateClosed AuthState = "closed"
)

// AuthReason classifies authentication failures.
type AuthReason string

const (
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	ReasonTimeout            AuthReason = "timeout"
	ReasonUnexpectedPage     AuthReason = "unexpected_page"
)

// AuthError is returned when login or re-login fails. It is batch-fatal
// when it occurs before any row has been processed.
type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrSessionExpired signals that a navigation landed on the login
// surface. The retry controller recovers from it by re-authenticating.
var ErrSessionExpired = errors.New("session expired: redirected to login")

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// Default values for browser sessions.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Launch arguments carried over from the portal's known quirks; the
// target renders identically and these avoid sandbox issues in
// containers.
var defaultLaunchArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
}
