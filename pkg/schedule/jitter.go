package schedule

import (
	"math/rand/v2"
	"time"
)

// DefaultMaxJitter bounds the random offset added to every schedule.
const DefaultMaxJitter = 59 * time.Minute

// Jitter returns a uniformly distributed duration in [0, maxJitter) at millisecond
// resolution. It returns 0 when maxJitter is below one millisecond.
func Jitter(maxJitter time.Duration) time.Duration {
	ms := maxJitter.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(ms)) * time.Millisecond
}
