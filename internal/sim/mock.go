package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/verte-zerg/reflex/internal/model"
)

// Mock reproduces the stock demo sequence: the start button is pressed
// every round, difficulty waves between 30 and 80, the hand crosses
// 180..513ms after the stimulus, and every fifth round starting at the
// second misses the press entirely.
type Mock struct {
	mu        sync.Mutex
	threshold uint16
	round     uint32
	stimOn    bool
	tactile   bool
}

// NewMock returns the stock mock for the given pressure threshold.
func NewMock(threshold uint16) *Mock {
	return &Mock{threshold: threshold}
}

// StartRequested implements capability.StartSignal.
func (m *Mock) StartRequested(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round++
	m.stimOn = false
	m.tactile = false
	return true, nil
}

// ReadDifficulty implements capability.DifficultyProvider.
func (m *Mock) ReadDifficulty(context.Context) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint8(30 + (m.round*7)%51), nil
}

// ActivateStimulus implements capability.Stimulus; the mock only notes
// that the visual window is open.
func (m *Mock) ActivateStimulus(context.Context) error {
	m.mu.Lock()
	m.stimOn = true
	m.mu.Unlock()
	return nil
}

func (m *Mock) visualMs() uint32 {
	return 180 + 37*((m.round*5)%10)
}

func (m *Mock) pressAt() (uint32, bool) {
	if m.round%5 == 2 {
		return 0, false
	}
	t := 140 + 23*((m.round*3)%12)
	if m.adc() < m.threshold {
		t += 80
	}
	return t, true
}

func (m *Mock) adc() uint16 {
	return uint16(300 + (m.round*150)%600)
}

// PollVisualCrossing implements capability.VisualSensor.
func (m *Mock) PollVisualCrossing(_ context.Context, tick uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stimOn || m.tactile {
		return false, nil
	}
	if tick >= m.visualMs() {
		m.tactile = true
		return true, nil
	}
	return false, nil
}

// PollPressure implements capability.PressureSensor.
func (m *Mock) PollPressure(_ context.Context, tick uint32) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.pressAt()
	if !m.tactile || !ok || tick < at {
		return 200, nil
	}
	if v := m.adc(); v >= m.threshold {
		return v, nil
	}
	return m.threshold, nil
}

// RandomProfile tunes the Random backend.
type RandomProfile struct {
	EarlyProb    float64
	MissProb     float64
	VisualMeanMs float64
	VisualSdMs   float64
	TactileMean  float64
	TactileSdMs  float64
}

// DefaultRandomProfile returns plausible human reaction figures.
func DefaultRandomProfile() RandomProfile {
	return RandomProfile{
		EarlyProb:    0.05,
		MissProb:     0.08,
		VisualMeanMs: 320,
		VisualSdMs:   90,
		TactileMean:  260,
		TactileSdMs:  80,
	}
}

// Random draws each round's behaviour from a RandomProfile.
type Random struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	profile   RandomProfile
	threshold uint16

	difficulty uint8
	earlyAt    model.Millis
	visualAt   uint32
	tactileAt  model.Millis
	stimOn     bool
	tactile    bool
}

// NewRandom returns a Random backend. A zero seed uses the current time.
func NewRandom(seed int64, profile RandomProfile, threshold uint16) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rnd: rand.New(rand.NewSource(seed)), profile: profile, threshold: threshold}
}

func (r *Random) latency(mean, sd float64) uint32 {
	v := r.rnd.NormFloat64()*sd + mean
	if v < 0 {
		v = 0
	}
	return uint32(v)
}

// StartRequested implements capability.StartSignal.
func (r *Random) StartRequested(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stimOn = false
	r.tactile = false
	r.difficulty = uint8(r.rnd.Intn(model.DifficultyMax + 1))
	r.earlyAt = model.Millis{}
	if r.rnd.Float64() < r.profile.EarlyProb {
		r.earlyAt = model.Ms(uint32(r.rnd.Intn(model.DefaultWaitMinMs)))
	}
	r.visualAt = r.latency(r.profile.VisualMeanMs, r.profile.VisualSdMs)
	r.tactileAt = model.Ms(r.latency(r.profile.TactileMean, r.profile.TactileSdMs))
	if r.rnd.Float64() < r.profile.MissProb {
		r.tactileAt = model.Millis{}
	}
	return true, nil
}

// ReadDifficulty implements capability.DifficultyProvider.
func (r *Random) ReadDifficulty(context.Context) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.difficulty, nil
}

// ActivateStimulus implements capability.Stimulus.
func (r *Random) ActivateStimulus(context.Context) error {
	r.mu.Lock()
	r.stimOn = true
	r.mu.Unlock()
	return nil
}

// PollVisualCrossing implements capability.VisualSensor.
func (r *Random) PollVisualCrossing(_ context.Context, tick uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stimOn {
		return r.earlyAt.Valid && tick >= r.earlyAt.Value, nil
	}
	if r.tactile {
		return false, nil
	}
	if tick >= r.visualAt {
		r.tactile = true
		return true, nil
	}
	return false, nil
}

// PollPressure implements capability.PressureSensor.
func (r *Random) PollPressure(_ context.Context, tick uint32) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tactile || !r.tactileAt.Valid || tick < r.tactileAt.Value {
		return uint16(r.rnd.Intn(int(r.threshold) + 1)) / 2, nil
	}
	return r.threshold + uint16(r.rnd.Intn(int(model.PressureMax-r.threshold)+1)), nil
}
