// Package apperr defines the error taxonomy shared by the credential, sync and
// store layers.
package apperr

import (
	"errors"
	"fmt"
)

// AuthError reports missing or invalid credentials or tokens.
// Callers should route the user back to credential configuration.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError reports a failed remote call. StatusCode is 0 when the request
// never produced an HTTP response.
type NetworkError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API error %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": network error"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataError reports a malformed or schema-incompatible payload.
type DataError struct {
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data: %s: %v", e.Reason, e.Err)
	}
	return "data: " + e.Reason
}

func (e *DataError) Unwrap() error { return e.Err }

// Auth builds an AuthError.
func Auth(reason string) error {
	return &AuthError{Reason: reason}
}

// Data builds a DataError.
func Data(reason string, err error) error {
	return &DataError{Reason: reason, Err: err}
}

// IsAuth reports whether err wraps an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNetwork reports whether err wraps a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsData reports whether err wraps a DataError.
func IsData(err error) bool {
	var target *DataError
	return errors.As(err, &target)
}
