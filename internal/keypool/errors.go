package keypool

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPool indicates the manager was constructed with no keys. The
// process should treat this as fatal at startup.
var ErrEmptyPool = errors.New("keypool: no API keys configured")

// NoKeysAvailableError indicates every key in the pool is cooling down.
// RetryAfter is the time until the earliest key becomes available again.
type NoKeysAvailableError struct {
	RetryAfter time.Duration
}

func (e *NoKeysAvailableError) Error() string {
	return fmt.Sprintf("keypool: all keys cooling down, retry after %s", e.RetryAfter.Round(time.Second))
}

// IsNoKeysAvailable reports whether err is a pool-exhaustion error and, if
// so, returns the retry hint.
func IsNoKeysAvailable(err error) (time.Duration, bool) {
	var e *NoKeysAvailableError
	if errors.As(err, &e) {
		return e.RetryAfter, true
	}
	return 0, false
}
