package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for client-side failure conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Credential errors
	ErrMalformedToken = errors.New("malformed token")
	ErrRefreshFailed  = errors.New("credential refresh failed")

	// ErrNoRefreshToken is a refresh failure: renewal was demanded with
	// nothing stored to renew. errors.Is matches ErrRefreshFailed too.
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token", ErrRefreshFailed)

	// ErrUnauthorized is the terminal authorization failure. By the time a
	// caller sees it the stored session has already been cleared.
	ErrUnauthorized = errors.New("authentication required")

	// ErrInvalidCredentials means the server rejected credentials the caller
	// submitted (password, one-time code, token to verify). Any stored
	// session is untouched.
	ErrInvalidCredentials = errors.New("credentials rejected")
	ErrForbidden    = errors.New("permission denied")

	// Resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Operational errors
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("service temporarily unavailable")
	ErrServer      = errors.New("server error")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
	ErrConfigInvalid  = errors.New("invalid configuration value")
)

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited)
}

// IsSessionTerminated returns true if the error means the stored credentials
// are gone and the user has to authenticate again.
func IsSessionTerminated(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRefreshFailed)
}

// clientErrors enumerates all domain errors that represent client-side issues.
var clientErrors = []error{
	ErrInvalidInput,
	ErrNotFound,
	ErrAlreadyExists,
	ErrForbidden,
	ErrUnauthorized,
	ErrInvalidCredentials,
	ErrMalformedToken,
	ErrRefreshFailed,
}

// IsClientError returns true if the error represents a client-side issue
// that will not succeed on retry without client-side changes.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
