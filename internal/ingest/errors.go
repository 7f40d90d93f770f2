package ingest

import (
	"errors"
	"fmt"
)

// ErrorCode classifies fetch failures for logs and exit messages.
type ErrorCode string

const (
	ErrCodeTransient ErrorCode = "TRANSIENT_FETCH_FAILED"
	ErrCodeFatal     ErrorCode = "FATAL_FETCH_FAILED"
)

// TransientFetchError is returned once retries are exhausted on connection
// failures or retryable statuses (429, 500, 502, 503, 504).
type TransientFetchError struct {
	Attempts   int
	StatusCode int // last status seen, 0 for transport errors
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("giving up after %d attempts: HTTP %d", e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error   { return e.Err }
func (e *TransientFetchError) Code() ErrorCode { return ErrCodeTransient }
func (e *TransientFetchError) Retryable() bool { return true }

// FatalFetchError is a non-retryable HTTP failure such as a rejected filter.
type FatalFetchError struct {
	StatusCode int
	Body       string
}

func (e *FatalFetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *FatalFetchError) Code() ErrorCode { return ErrCodeFatal }
func (e *FatalFetchError) Retryable() bool { return false }

// PageError attaches the page number to a fetch failure.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalFetchError.
func IsFatal(err error) bool {
	var fatal *FatalFetchError
	return errors.As(err, &fatal)
}
