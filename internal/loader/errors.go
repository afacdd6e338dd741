package loader

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed        = errors.New("fetch failed")
	ErrInvalidCacheExpiry = errors.New("invalid automated cache expire time")
	ErrInvalidOptions     = errors.New("invalid loader options")
)

// FetchError reports a source that could not be fetched. Status is the HTTP
// status code, or 0 for failures that never produced a response.
type FetchError struct {
	URL    string
	Status int
	Reason string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: %d %s", ErrFetchFailed, e.URL, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFetchFailed, e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return ErrFetchFailed
}
