package live

import (
	"context"
	"sync"
	"time"

	"github.com/verte-zerg/reflex/internal/model"
)

const (
	// DefaultHold is how long one press of the pressure key reads as held.
	// Terminal key repeat keeps extending it while the key stays down.
	DefaultHold = 150 * time.Millisecond

	difficultyStep = 5
)

// Keys turns keyboard events into the input capabilities of a device:
// start signal, difficulty, visual crossing and pressure.
type Keys struct {
	mu   sync.Mutex
	now  func() time.Time
	hold time.Duration

	start      bool
	crossing   bool
	heldUntil  time.Time
	difficulty uint8
}

// NewKeys returns Keys starting at the given difficulty.
func NewKeys(difficulty uint8, now func() time.Time) *Keys {
	if now == nil {
		now = time.Now
	}
	return &Keys{
		now:        now,
		hold:       DefaultHold,
		difficulty: min(difficulty, model.DifficultyMax),
	}
}

// RequestStart latches a start request until the engine consumes it.
func (k *Keys) RequestStart() {
	k.mu.Lock()
	k.start = true
	k.mu.Unlock()
}

// Cross latches one hand crossing.
func (k *Keys) Cross() {
	k.mu.Lock()
	k.crossing = true
	k.mu.Unlock()
}

// Press holds the pressure pad at full scale for the hold period.
func (k *Keys) Press() {
	k.mu.Lock()
	k.heldUntil = k.now().Add(k.hold)
	k.mu.Unlock()
}

// Adjust moves the difficulty by delta steps, clamped to 0..100.
func (k *Keys) Adjust(delta int) uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()
	d := int(k.difficulty) + delta*difficultyStep
	k.difficulty = uint8(min(max(d, 0), model.DifficultyMax))
	return k.difficulty
}

// Difficulty returns the current difficulty.
func (k *Keys) Difficulty() uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.difficulty
}

// StartRequested consumes a pending start. Crossings and presses made
// before the start are dropped so they cannot leak into the new round.
func (k *Keys) StartRequested(context.Context) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.start {
		return false, nil
	}
	k.start = false
	k.crossing = false
	k.heldUntil = time.Time{}
	return true, nil
}

func (k *Keys) ReadDifficulty(context.Context) (uint8, error) {
	return k.Difficulty(), nil
}

func (k *Keys) PollVisualCrossing(context.Context, uint32) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	hit := k.crossing
	k.crossing = false
	return hit, nil
}

func (k *Keys) PollPressure(context.Context, uint32) (uint16, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.now().Before(k.heldUntil) {
		return model.PressureMax, nil
	}
	return 0, nil
}
