package dice

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// float53 is 2^53, the number of evenly spaced float64 values in [0, 1).
const float53 = 1 << 53

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n); every Float64 is in [0, 1).
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics if n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Float64 returns a uniformly distributed float in [0, 1) with 53 bits of precision.
func (c cryptoSource) Float64() float64 {
	return float64(c.Intn(float53)) / float53
}

// Scripted is a Source that replays a fixed list of draws, for tests and replays.
// Once exhausted it keeps returning the last draw; an empty script returns 0.99,
// which resolves to "no loot, no raid".
type Scripted struct {
	mu    sync.Mutex
	draws []float64
	next  int
}

// NewScripted returns a Scripted source replaying draws in order.
//
// Precondition: every draw is in [0, 1).
func NewScripted(draws ...float64) *Scripted {
	return &Scripted{draws: draws}
}

// Float64 returns the next scripted draw.
func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.draws) == 0 {
		return 0.99
	}
	i := s.next
	if i >= len(s.draws) {
		i = len(s.draws) - 1
	} else {
		s.next++
	}
	return s.draws[i]
}

// Intn scales the next scripted draw into [0, n).
//
// Precondition: n > 0.
func (s *Scripted) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	return int(s.Float64() * float64(n))
}

// Remaining reports how many scripted draws have not been consumed yet.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.draws) - s.next
}
