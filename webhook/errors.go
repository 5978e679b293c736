package webhook

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an endpoint or delivery does not exist
var ErrNotFound = errors.New("not found")

/* ValidationError signals rejected input at the system boundary
 * (unknown event type, malformed URL, empty events set)
 * No side effects occur when one is returned
 */
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
