// Package random provides the seedable randomness shared by strategy gates, simulated fills
// and the simulated signal providers.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniformly distributed floats in [0,1).
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// Stream identifies one consumer of the configured seed.
type Stream int64

const (
	StreamGate Stream = iota
	StreamFill
	StreamMarket
	StreamAnalysis
)

// Derive returns the seed for stream so that consumers of one configured seed draw
// uncorrelated sequences. A zero seed stays zero and each source seeds from the clock.
func Derive(seed int64, stream Stream) int64 {
	if seed == 0 {
		return 0
	}
	return seed + int64(stream)
}

// New returns a goroutine-safe source. A zero seed seeds from the clock.
func New(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Uniform maps a draw from src onto [min, max].
func Uniform(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// Chance reports whether a draw falls under probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Pick returns one of options chosen uniformly.
func Pick(src Source, options ...string) string {
	idx := int(src.Float64() * float64(len(options)))
	if idx >= len(options) {
		idx = len(options) - 1
	}
	return options[idx]
}

// Sequence replays fixed values in order, wrapping around. It makes gated behaviour scriptable in tests.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence creates a scripted source.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
