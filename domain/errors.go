package domain

import (
	"errors"
	"fmt"
)

// ErrFeedNotFound is returned when a referenced feed id no longer exists.
// Jobs treat it as a no-op, not a failure: the feed may have been deleted
// between enqueue and execution.
var ErrFeedNotFound = errors.New("feed not found")

// FetchError reports a transport failure or non-2xx response while
// retrieving a feed document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed document that could not be parsed at all, even
// after the degraded reparse pass.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
