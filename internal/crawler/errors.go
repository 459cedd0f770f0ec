package crawler

import (
	"errors"
	"fmt"
)

// Error kinds reported by the scheduler and its collaborators. Use errors.Is
// to test for them.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
	ErrInvalidConfig = errors.New("invalid crawler config")
)

// FetchError describes a failed fetch. It matches ErrNetwork.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports ErrNetwork as a match so callers need not know the concrete type.
func (e *FetchError) Is(target error) bool {
	return target == ErrNetwork
}

func statusCodeOf(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}
