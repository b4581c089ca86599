package permissions

import (
	"errors"
	"fmt"
)

// ErrSubjectNotFound indicates the permission store has no record for a
// subject id. It is distinct from a subject that exists with zero
// permissions, which resolves to an empty set without error.
var ErrSubjectNotFound = errors.New("subject not found in permission store")

// MalformedPermissionError indicates a permission string that does not
// decompose into one of the legal shapes. When it comes from the store it
// means data corruption: resolution logs it loudly and skips the record.
type MalformedPermissionError struct {
	ID string
}

func (e *MalformedPermissionError) Error() string {
	return fmt.Sprintf("malformed permission string %q", e.ID)
}

// StoreUnavailableError indicates the permission store could not be
// reached or failed transiently. Callers must not conflate it with
// ErrSubjectNotFound: unavailability surfaces as a service error, never
// as an empty permission set.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("permission store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
