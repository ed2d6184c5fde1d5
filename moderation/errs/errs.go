// Error taxonomy shared by the moderation packages.
//
// Authorization failures are not errors: they are returned as values so a caller can show the
// reason to the moderator. Everything here describes a request that could not be evaluated or
// persisted at all.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflicting concurrent write")
	ErrRateLimited   = errors.New("moderator action rate limit exceeded")
	ErrQuotaExceeded = errors.New("moderator daily quota exceeded")
	ErrLockTimeout   = errors.New("timed out waiting for key lock")
)

// ValidationError indicates malformed input: an empty reason, an unparseable date filter, an
// appointment of a role the appointer may not create, and similar.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
