package schema

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record id does not exist in the replica.
var ErrNotFound = errors.New("record not found")

// ErrPermissionDenied is returned when the caller's scope predicate
// rejects the record a mutation targets. Denial is always explicit,
// never silently filtered into an empty success.
var ErrPermissionDenied = errors.New("permission denied")

// ValidationError reports a malformed write payload. It is surfaced to
// the caller and never retried.
type ValidationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: field %q %s", e.Table, e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
