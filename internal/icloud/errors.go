package icloud

import "errors"

// Sentinel errors for remote photo service operations. Transient errors
// are retried by the client's RetryPolicy; all others are terminal and
// invalidate the current session.
var (
	// ErrInvalidCredentials indicates the Apple ID or password was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidCode indicates the submitted two-factor code was rejected.
	ErrInvalidCode = errors.New("invalid verification code")

	// Err2FARequired indicates the account requires two-factor verification
	// before photos can be listed or downloaded.
	Err2FARequired = errors.New("two-factor verification required")

	// ErrServiceUnavailable indicates a transient server-side failure.
	// Calls failing with this error are retried.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")

	// ErrAuthExpired indicates the session token is no longer valid.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNotFound indicates the requested photo does not exist remotely.
	ErrNotFound = errors.New("photo not found")
)

// IsTerminal reports whether err should invalidate the current session
// rather than be retried or ignored.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrAuthExpired)
}
