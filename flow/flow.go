// Package flow implements per-direction flow-control window accounting with
// threshold-based WINDOW_UPDATE generation.
package flow

import "github.com/xkilldash9x/h2wire"

// Hooks are the named callbacks a controller fires as its window moves.
// Either may be nil.
type Hooks struct {
	// Receive fires after the window shrank by n consumed bytes.
	Receive func(n int)
	// Update fires after the window grew by an applied increment of n.
	Update func(n int)
}

// Controller tracks one direction's window. The invariant
// window <= max <= 2^31-1 holds after every operation.
type Controller struct {
	window    int64
	max       int64
	threshold int64
	hooks     Hooks
}

// New returns a controller with the given maximum window and replenish
// threshold. The window starts full; max is capped at 2^31-1. A
// non-positive threshold defaults to half the maximum, which is when update
// generation starts paying for itself.
func New(max, threshold int64, hooks Hooks) *Controller {
	if max > h2wire.MaxWindowSize {
		max = h2wire.MaxWindowSize
	}
	if threshold <= 0 {
		threshold = max / 2
	}
	return &Controller{window: max, max: max, threshold: threshold, hooks: hooks}
}

// Window reports the current window.
func (c *Controller) Window() int64 { return c.window }

// Max reports the maximum window.
func (c *Controller) Max() int64 { return c.max }

// Receive consumes n bytes from the window.
func (c *Controller) Receive(n int) {
	c.window -= int64(n)
	if c.hooks.Receive != nil {
		c.hooks.Receive(n)
	}
}

// ApplyWindowUpdate grows the window by n, clamping at the maximum.
func (c *Controller) ApplyWindowUpdate(n int) {
	c.window += int64(n)
	if c.window > c.max {
		c.window = c.max
	}
	if c.hooks.Update != nil {
		c.hooks.Update(n)
	}
}

// Adjust applies a signed delta to the window, as a SETTINGS-driven change
// of the initial window size requires. The result still never exceeds the
// maximum.
func (c *Controller) Adjust(delta int64) {
	c.window += delta
	if c.window > c.max {
		c.window = c.max
	}
}

// CreateWindowUpdate returns the increment a WINDOW_UPDATE frame should
// carry, or ok=false while the window is still above the threshold (or
// already full, or the computed increment would not be positive).
func (c *Controller) CreateWindowUpdate() (uint32, bool) {
	if c.window >= c.threshold || c.window >= c.max {
		return 0, false
	}
	increment := c.max - c.window
	if increment <= 0 {
		return 0, false
	}
	if increment > h2wire.MaxWindowSize {
		increment = h2wire.MaxWindowSize
	}
	return uint32(increment), true
}
