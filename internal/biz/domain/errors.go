package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotAuthorized is returned when the platform session has not been authorized
var ErrNotAuthorized = errors.New("session not authorized")

// RateLimitError is the recoverable signal that the caller must pause before retrying
type RateLimitError struct {
	Wait time.Duration // server-suggested wait, zero when not provided
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited for %v: %v", e.Wait, e.Err)
	}
	return fmt.Sprintf("rate limited for %v", e.Wait)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ErrChatNotFound is returned when a chat has no stored rollup
var ErrChatNotFound = errors.New("chat not found")
