package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedWebsite means the website tag is outside the supported
	// set. Returned before any network I/O and never retried.
	ErrUnsupportedWebsite = errors.New("unsupported website")

	// ErrNoPriceMatch means the page was fetched and parsed but no price
	// selector matched non-empty text. Markup may be mid-rollout or the
	// page partially rendered, so this is treated as transient.
	ErrNoPriceMatch = errors.New("no price selector matched")
)

// NetworkError wraps a transport failure or a non-success HTTP status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PriceFormatError means a selector matched but the cleaned text does not
// parse to a positive number. The markup is fixed, so retrying the same
// page cannot help.
type PriceFormatError struct {
	Raw string
}

func (e *PriceFormatError) Error() string {
	return fmt.Sprintf("invalid price format: %q", e.Raw)
}

// RetryExhaustedError wraps the last transient error after the retry
// bound was hit.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsRetryable reports whether an extraction failure is worth another
// attempt. Unsupported websites and unparseable markup are terminal.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrNoPriceMatch)
}
