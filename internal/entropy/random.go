// Package entropy provides the random source behind price jitter and harvest
// variation. Deterministic mode seeds math/rand so outcomes replay exactly;
// otherwise values come from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Seeded is a deterministic, mutex-guarded PRNG.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source from seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float64 returns the next value in [0, 1).
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Crypto draws from crypto/rand.
type Crypto struct{}

func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// New returns a seeded source when deterministic is set, crypto otherwise.
func New(deterministic bool, seed int64) Source {
	if deterministic {
		return NewSeeded(seed)
	}
	return Crypto{}
}

// Fixed always returns the same value. Useful for pinning jitter in tests.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

// Symmetric maps a [0,1) draw onto [-1, 1).
func Symmetric(src Source) float64 {
	return src.Float64()*2 - 1
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
