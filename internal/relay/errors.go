package relay

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSetupIncomplete is returned when the source or destination is unset.
	ErrSetupIncomplete = errors.New("relay: setup incomplete, set source and destination first")

	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("relay: invalid range")

	// ErrRunInProgress is returned when a bulk run is already executing.
	ErrRunInProgress = errors.New("relay: a forward run is already in progress")
)

// RateLimitError is the platform asking the caller to wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay: rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("relay: rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AsRateLimit reports whether err carries a RateLimitError.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
