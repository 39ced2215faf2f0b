// Package errmap classifies wire-level failures from the dashboard API into
// domain errors, so callers match them with errors.Is instead of comparing
// status codes.
package errmap

import (
	"fmt"
	"net/http"

	"github.com/pyresume/dashclient/internal/domain"
)

// HTTPError is a non-2xx API response. It unwraps to the domain sentinel
// for its status code.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string

	err error
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.err, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.err, e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.err
}

// httpMapping defines an HTTP status to domain error mapping.
type httpMapping struct {
	statusCode int
	err        error
	code       string
}

// httpMappings maps response statuses to domain errors. Statuses not listed
// fall back by class in FromHTTPStatus.
var httpMappings = []httpMapping{
	// Auth
	{http.StatusUnauthorized, domain.ErrUnauthorized, "UNAUTHENTICATED"},
	{http.StatusForbidden, domain.ErrForbidden, "PERMISSION_DENIED"},

	// Resource
	{http.StatusNotFound, domain.ErrNotFound, "NOT_FOUND"},
	{http.StatusConflict, domain.ErrAlreadyExists, "ALREADY_EXISTS"},

	// Validation
	{http.StatusBadRequest, domain.ErrInvalidInput, "INVALID_ARGUMENT"},
	{http.StatusUnprocessableEntity, domain.ErrInvalidInput, "INVALID_ARGUMENT"},

	// Operational
	{http.StatusTooManyRequests, domain.ErrRateLimited, "RATE_LIMITED"},
	{http.StatusBadGateway, domain.ErrUnavailable, "UNAVAILABLE"},
	{http.StatusServiceUnavailable, domain.ErrUnavailable, "UNAVAILABLE"},
	{http.StatusGatewayTimeout, domain.ErrUnavailable, "UNAVAILABLE"},
}

// FromHTTPStatus returns nil for 1xx-3xx statuses and an *HTTPError
// otherwise. msg is the server's error message, if any.
func FromHTTPStatus(statusCode int, msg string) error {
	if statusCode < http.StatusBadRequest {
		return nil
	}
	for _, m := range httpMappings {
		if m.statusCode == statusCode {
			return &HTTPError{StatusCode: statusCode, Code: m.code, Message: msg, err: m.err}
		}
	}
	if statusCode >= http.StatusInternalServerError {
		return &HTTPError{StatusCode: statusCode, Code: "INTERNAL", Message: msg, err: domain.ErrServer}
	}
	return &HTTPError{StatusCode: statusCode, Code: "INVALID_ARGUMENT", Message: msg, err: domain.ErrInvalidInput}
}

// FromCredentialStatus is FromHTTPStatus for calls that submit credentials
// instead of carrying the session: a 401 rejects what was submitted and maps
// to domain.ErrInvalidCredentials.
func FromCredentialStatus(statusCode int, msg string) error {
	if statusCode == http.StatusUnauthorized {
		return &HTTPError{StatusCode: statusCode, Code: "INVALID_CREDENTIALS", Message: msg, err: domain.ErrInvalidCredentials}
	}
	return FromHTTPStatus(statusCode, msg)
}
