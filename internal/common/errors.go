// Package common defines shared constants and sentinel errors used across
// the gateway layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Auth errors. Unauthenticated means no valid session was presented;
	// Forbidden means the session's role is insufficient for the action.
	// The two must stay distinct so the HTTP layer can map them to
	// 401 and 403 respectively.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Validation errors (bad input shape, size, or type).
	ErrValidation = errors.New("validation error")

	// Storage errors.
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrRemoteFetchFailed  = errors.New("remote fetch failed")
	ErrInvalidPath        = errors.New("invalid path")

	// Generic/internal flow control.
	ErrInternal = errors.New("internal error")
)
