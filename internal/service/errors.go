package service

import (
	"errors"
	"fmt"
)

// Request-level failures the bot translates into user-facing replies.
// Storage and provider faults are not in this list: they propagate wrapped
// and end up as a generic failure message.
var (
	ErrPromptTooLong  = errors.New("prompt too long")
	ErrNoBalance      = errors.New("no recipe tokens left")
	ErrBalanceDrained = errors.New("balance drained during generation")
	ErrUnknownPackage = errors.New("unknown package")
	ErrGeneration     = errors.New("generation failed")
)

// RateLimitedError tells the user how long to wait before the next recipe.
type RateLimitedError struct {
	Seconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.Seconds)
}
