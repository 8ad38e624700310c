package services

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Handlers map these onto HTTP statuses; messages are
// deliberately uniform where distinguishing cases would leak account or
// token existence.
var (
	// ErrValidation marks rejected input; wrap it with the specific reasons.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNotAuthorized means authenticated but lacking the required role.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrTokenInvalid covers reset tokens that are unknown or past expiry.
	ErrTokenInvalid = errors.New("invalid or expired token")

	ErrNotFound = errors.New("not found")

	// ErrStorage is the generic surface for underlying storage errors; this
	// layer never retries.
	ErrStorage = errors.New("storage failure")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
