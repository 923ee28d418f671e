package app

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

// RetryPolicy bounds how often a transaction that lost an optimistic
// concurrency race is replayed.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used unless WithRetryPolicy overrides it.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 10 * time.Millisecond,
	MaxDelay:  200 * time.Millisecond,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. Exhaustion is reported as ErrCapacityExceeded.
func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	p = p.normalized()
	delay := p.BaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !domain.Retryable(err) {
			return err
		}
		if attempt >= p.Attempts {
			return &domain.Error{
				Kind: domain.ErrCapacityExceeded,
				Op:   op,
				Msg:  "rack capacity changed concurrently; gave up after retries, re-check availability",
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
