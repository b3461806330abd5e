package domain

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a query is requested while another is running.
// The request is dropped, not queued.
var ErrBusy = errors.New("query already in progress")

// ValidationError reports an input rejected before any I/O.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// FetchError is a transport failure or non-success status from the remote store.
type FetchError struct {
	URL    string
	Op     string // "probe", "footer", "range", "index"
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports bytes that could not be parsed as the expected format.
type DecodeError struct {
	URL      string
	RowGroup int // -1 when the footer itself is unreadable
	Err      error
}

func (e *DecodeError) Error() string {
	if e.RowGroup < 0 {
		return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("decode %s row group %d: %v", e.URL, e.RowGroup, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
