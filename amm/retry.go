package amm

import (
	"errors"
	"time"

	"bundler/bundle"
	"bundler/config"
	"bundler/utils"
)

var (
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrRetriesExhausted = errors.New("retry budget exhausted")
)

// RetryPolicy bounds the retry loop of the makers and volume workflows.
// Zero values mean unlimited, which keeps retrying until the context ends.
type RetryPolicy struct {
	MaxAttempts            int // failed attempts allowed per workflow call
	MaxConsecutiveFailures int
	Pause                  time.Duration // defaults to config.RETRY_PAUSE
}

func (p RetryPolicy) pause() time.Duration {
	if p.Pause <= 0 {
		return config.RETRY_PAUSE
	}
	return p.Pause
}

func (p RetryPolicy) exhausted(failures, consecutive int) bool {
	if p.MaxAttempts > 0 && failures >= p.MaxAttempts {
		return true
	}
	return p.MaxConsecutiveFailures > 0 && consecutive >= p.MaxConsecutiveFailures
}

// IsFatal reports errors that retrying cannot fix, including a payer without funds.
func IsFatal(err error) bool {
	return utils.IsInsufficientFunds(err) ||
		errors.Is(err, bundle.ErrInvalidBlockhash) ||
		errors.Is(err, bundle.ErrBundleMismatch) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrRetriesExhausted)
}
