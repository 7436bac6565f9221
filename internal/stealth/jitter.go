package stealth

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Jitter produces randomized waits. Every wait carries a fractional
// component so no two pauses are a whole number of milliseconds.
type Jitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter creates a new Jitter instance
func NewJitter() *Jitter {
	return &Jitter{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Duration returns a random duration between min and max seconds
func (j *Jitter) Duration(minSeconds, maxSeconds float64) time.Duration {
	if minSeconds < 0 {
		minSeconds = 0
	}
	if maxSeconds < minSeconds {
		maxSeconds = minSeconds
	}

	j.mu.Lock()
	seconds := minSeconds + j.rng.Float64()*(maxSeconds-minSeconds)
	seconds += j.rng.Float64() * 0.0001
	j.mu.Unlock()

	return time.Duration(seconds * float64(time.Second))
}

// SleepRange sleeps for Duration(min, max) or until ctx is done
func (j *Jitter) SleepRange(ctx context.Context, minSeconds, maxSeconds float64) {
	select {
	case <-ctx.Done():
	case <-time.After(j.Duration(minSeconds, maxSeconds)):
	}
}

// Intn returns a random int in [min, max]
func (j *Jitter) Intn(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + j.rng.Intn(max-min+1)
}

// Float returns a random float64 in [min, max)
func (j *Jitter) Float(min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + j.rng.Float64()*(max-min)
}
