package intents

import "time"

const (
	backoffBase         = 5 * time.Minute
	backoffMaxDoublings = 6
	backoffCap          = 24 * time.Hour
)

// Backoff is the retry delay after a failed attempt, given the attempt count
// before that failure. The exponent is capped first, then the duration.
func Backoff(attemptCount int) time.Duration {
	n := min(max(attemptCount, 0), backoffMaxDoublings)
	return min(backoffCap, backoffBase<<n)
}
