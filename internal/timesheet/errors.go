package timesheet

import (
	"errors"
	"fmt"
)

// ErrAccountNotLinked is matched by every AccountNotLinkedError.
var ErrAccountNotLinked = errors.New("account not linked")

// AccountNotLinkedError reports that a required external account has not
// been linked yet.
type AccountNotLinkedError struct {
	Service string
}

func (e *AccountNotLinkedError) Error() string {
	return fmt.Sprintf("%s account not linked", e.Service)
}

func (e *AccountNotLinkedError) Is(target error) bool {
	return target == ErrAccountNotLinked
}

// InvalidRangeError reports a bad generation or removal range.
type InvalidRangeError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ProviderRequestError is a non-2xx response from an external service.
type ProviderRequestError struct {
	Service string
	Status  int
	Body    string
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, e.Body)
}

// ValidationError reports an entry that failed validation.
type ValidationError struct {
	Entry Entry
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid timesheet entry for %s: %v", e.Entry.Date, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
