package scrape

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input. No external call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExternalError reports a transport, auth, quota, or malformed-response
// failure from the catalog's search or detail endpoints.
type ExternalError struct {
	Op    string // "search" or "details"
	Quota bool   // throttled rather than outright unavailable
	Err   error
}

func (e *ExternalError) Error() string {
	if e.Quota {
		return fmt.Sprintf("%s: quota exceeded: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// StorageError reports a connectivity, constraint, or schema failure in the
// channel store. Always fatal for the current run, never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExternal reports whether err is an *ExternalError.
func IsExternal(err error) bool {
	var x *ExternalError
	return errors.As(err, &x)
}

// IsStorage reports whether err is a *StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
