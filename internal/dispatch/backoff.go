package dispatch

import "time"

const maxBackoff = time.Hour

// Backoff returns the delay before the retry that follows attempt number
// attempts: base × 2^attempts, capped at one hour.
func Backoff(base time.Duration, attempts int) time.Duration {
	if base <= 0 || attempts < 0 {
		return 0
	}
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
