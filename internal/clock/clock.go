// Package clock provides the tick sources that pace window polling.
package clock

import (
	"context"
	"sync"
	"time"
)

// Tick is the polling granularity.
const Tick = time.Millisecond

// Clock advances in ticks and accumulates elapsed time since the last
// Reset.
type Clock interface {
	Advance(ctx context.Context) error
	Elapsed() time.Duration
	Reset()
}

// Sim is a clock that advances instantly. It is safe for concurrent use.
type Sim struct {
	mu    sync.Mutex
	ticks int64
	total int64
}

// NewSim returns a simulated clock at zero.
func NewSim() *Sim {
	return &Sim{}
}

// Advance moves the clock forward one tick.
func (c *Sim) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.ticks++
	c.total++
	c.mu.Unlock()
	return nil
}

// Elapsed returns the simulated time since the last Reset.
func (c *Sim) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.ticks) * Tick
}

// Total returns the simulated time since creation.
func (c *Sim) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.total) * Tick
}

// Reset zeroes the elapsed accumulator.
func (c *Sim) Reset() {
	c.mu.Lock()
	c.ticks = 0
	c.mu.Unlock()
}

// Wall is a clock paced by a real ticker.
type Wall struct {
	mu     sync.Mutex
	start  time.Time
	ticker *time.Ticker
}

// NewWall starts a wall clock ticking every Tick. Call Stop when done.
func NewWall() *Wall {
	return &Wall{start: time.Now(), ticker: time.NewTicker(Tick)}
}

// Advance blocks until the next tick or until ctx is done.
func (c *Wall) Advance(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Elapsed returns real time since the last Reset.
func (c *Wall) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Reset restarts the elapsed accumulator.
func (c *Wall) Reset() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Stop releases the ticker.
func (c *Wall) Stop() {
	c.ticker.Stop()
}
