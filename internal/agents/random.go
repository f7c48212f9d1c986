package agents

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource supplies every random draw the simulators make
// (confidence, slippage, log-id suffix, pacing jitter).
// *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// lockedSource serialises access to a *rand.Rand so one source can be shared
// by concurrent runs (API handlers, scheduler jobs)
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource returns a goroutine-safe source. seed 0 seeds from the clock.
func NewLockedSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
