// Package generator draws the randomized pre-stimulus wait.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/reflex/internal/model"
)

// Generator produces randomized waits.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed for reproducible runs.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// RandomWaitMs returns min + uniform(0, span) where the span shrinks as
// difficulty rises. The result is always within [WaitMinMs, WaitMaxMs].
func (g *Generator) RandomWaitMs(difficulty uint8, t model.Tunables) uint32 {
	span := WaitSpan(difficulty, t)
	return t.WaitMinMs + uint32(g.rnd.Int63n(int64(span)+1))
}

// WaitSpan is the width of the random interval above WaitMinMs for a
// difficulty. At DifficultyShrink 0 it is the full (max - min) span.
func WaitSpan(difficulty uint8, t model.Tunables) uint32 {
	if t.WaitMaxMs <= t.WaitMinMs {
		return 0
	}
	d := uint64(difficulty)
	if d > model.DifficultyMax {
		d = model.DifficultyMax
	}
	shrink := uint64(t.DifficultyShrink)
	if shrink > 100 {
		shrink = 100
	}
	full := uint64(t.WaitMaxMs - t.WaitMinMs)
	removed := d * shrink / 100
	return uint32(full * (100 - removed) / 100)
}
