package queue

import (
	"math/rand"
	"time"
)

const (
	baseDelay = 2 * time.Second
	maxDelay  = 5 * time.Minute
	// maxShift caps the exponent so the shift never overflows before the
	// ceiling clamp applies.
	maxShift = 8
)

// Backoff returns the delay before the given attempt number (1-based):
// base doubled per attempt, clamped to a ceiling, jittered by up to 10%
// either side so a burst of failures does not retry in lockstep.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxShift {
		shift = maxShift
	}
	delay := baseDelay << shift
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/5)) - delay/10
	return delay + jitter
}
