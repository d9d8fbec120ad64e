package api

import "time"

// RetryConfig controls the delay between attempts.
type RetryConfig struct {
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier is applied to the delay on each further retry.
	Multiplier float64

	// MaxDelay caps the delay.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the backoff used against the spreadsheet backend.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Second,
	}
}

// Backoff returns the delay before retry number n (1-based).
func (r RetryConfig) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := 1.0
	for i := 1; i < n; i++ {
		mult *= r.Multiplier
	}
	d := time.Duration(float64(r.BaseDelay) * mult)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}
