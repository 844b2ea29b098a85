package query

import (
	"context"
	"errors"
	"time"

	"github.com/five82/toolroom/internal/api"
)

// MaxRetries is how many times a failed fetch is retried.
const MaxRetries = 2

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// Policy controls how a query uses the cache.
type Policy struct {
	StaleTime time.Duration // data younger than this is served without a fetch
	GCTime    time.Duration // unused entries are dropped this long after their last write

	// Retry decides whether to retry after the attempt-th retry failed
	// (attempt starts at zero). Nil uses ShouldRetry.
	Retry func(attempt int, err error) bool
	// RetryDelay returns the pause before retry number attempt. Nil uses
	// exponential backoff from one second.
	RetryDelay func(attempt int) time.Duration
}

// Per-resource policies.
var (
	MachinePolicy   = Policy{StaleTime: 5 * time.Minute, GCTime: 10 * time.Minute}
	PartPolicy      = Policy{StaleTime: 2 * time.Minute, GCTime: 5 * time.Minute}
	PartsListPolicy = Policy{StaleTime: 2 * time.Minute, GCTime: 5 * time.Minute}
	AdminPolicy     = Policy{StaleTime: time.Minute, GCTime: 5 * time.Minute}
)

// ShouldRetry is the retry predicate shared by every query. Client errors
// (404 and every other 4xx, including validation failures and expired
// sessions) are final, as is cancellation. Transport failures and 5xx
// responses are retried up to MaxRetries times.
func ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, api.ErrSessionExpired) {
		return false
	}
	if api.IsClientError(err) {
		return false
	}
	return true
}

// RetryDelay doubles from one second per attempt, capped at 30 seconds.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := baseRetryDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

func (p Policy) retry(attempt int, err error) bool {
	if p.Retry != nil {
		return p.Retry(attempt, err)
	}
	return ShouldRetry(attempt, err)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.RetryDelay != nil {
		return p.RetryDelay(attempt)
	}
	return RetryDelay(attempt)
}
