package browser

import (
	"context"
	"fmt"

	"github.com/coverscope/harvest/pkg/config"
)

// Login form selectors on the portal's login surface.
const (
	usernameSelector = `input[name="username"]`
	passwordSelector = `input[name="password"]`
	submitSelector   = `button[type="submit"]`
)

// Authenticate logs the session in. Success means the post-submit
// location is no longer the login surface. The credential reference is
// retained for transparent re-login on expiry; it is never logged.
func (s *Session) Authenticate(ctx context.Context, creds config.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if err := creds.Validate(); err != nil {
		return &AuthError{Reason: ReasonInvalidCredentials, Err: err}
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	return s.login()
}

// login drives the login form using the retained credentials.
func (s *Session) login() error {
	if err := s.rawGoto(s.cfg.LoginURL()); err != nil {
		return authFailure(err)
	}

	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	if err := s.Fill(usernameSelector, creds.Username); err != nil {
		return authFailure(err)
	}
	if err := s.Fill(passwordSelector, creds.Password); err != nil {
		return authFailure(err)
	}
	if err := s.Click(submitSelector); err != nil {
		return authFailure(err)
	}

	if err := s.waitForLoginSettled(); err != nil {
		return authFailure(err)
	}

	// Success iff we left the login surface.
	if s.IsLoginURL(s.page.URL()) {
		s.setState(StateUnauthenticated)
		return &AuthError{
			Reason: ReasonInvalidCredentials,
			Err:    fmt.Errorf("still on login surface after submit"),
		}
	}

	s.setState(StateAuthenticated)
	s.log.Infof("authenticated")
	return nil
}

// waitForLoginSettled waits for quiescence after submitting the login
// form, without treating a login URL as expiry.
func (s *Session) waitForLoginSettled() error {
	// WaitForQuiescence flags the login URL as expiry, which during
	// login just means bad credentials. Use the raw wait instead.
	err := s.WaitForQuiescence()
	if err == ErrSessionExpired {
		s.setState(StateUnauthenticated)
		return nil
	}
	return err
}

// EnsureValid checks that the session is still authenticated via a
// cheap probe and re-authenticates with the retained credentials if the
// portal redirected to login. Called by the retry controller before
// every retried attempt.
func (s *Session) EnsureValid(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateUnauthenticated:
		return &AuthError{Reason: ReasonUnexpectedPage, Err: fmt.Errorf("session was never authenticated")}
	case StateExpired:
		return s.reauthenticate()
	}

	// Liveness probe: request an authenticated-only page and look for a
	// redirect to login.
	if err := s.rawGoto(s.cfg.ProbeURL()); err != nil {
		return authFailure(err)
	}
	if s.IsLoginURL(s.page.URL()) {
		s.setState(StateExpired)
		return s.reauthenticate()
	}
	return nil
}

// reauthenticate re-runs the login flow after detected expiry.
func (s *Session) reauthenticate() error {
	s.log.Warnf("session expired, re-authenticating")
	if err := s.login(); err != nil {
		return err
	}
	s.log.Infof("re-authentication succeeded")
	return nil
}

// authFailure wraps a raw navigation error in an AuthError with the
// right reason.
func authFailure(err error) error {
	if isTimeoutErr(err) {
		return &AuthError{Reason: ReasonTimeout, Err: err}
	}
	return &AuthError{Reason: ReasonUnexpectedPage, Err: err}
}
