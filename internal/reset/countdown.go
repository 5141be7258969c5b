package reset

import "sync/atomic"

// DefaultDelay is the initial countdown value of both stages.
const DefaultDelay uint32 = 63

// Countdown is a saturating down-counter reloaded only by reset.
type Countdown struct {
	initial uint32
	value   atomic.Uint32
}

func newCountdown(initial uint32) *Countdown {
	c := &Countdown{initial: initial}
	c.value.Store(initial)
	return c
}

// Step decrements a non-zero counter and reports whether the counter was
// already at zero before this step.
func (c *Countdown) Step() bool {
	v := c.value.Load()
	if v == 0 {
		return true
	}
	c.value.Store(v - 1)
	return false
}

func (c *Countdown) Reload() { c.value.Store(c.initial) }

func (c *Countdown) Value() uint32 { return c.value.Load() }

func (c *Countdown) Initial() uint32 { return c.initial }
