package calib

import "sync/atomic"

// SimController models a delay-calibration controller: it is held in reset by
// the intermediate reset, runs on the bring-up clock and raises Ready once it
// has seen SettleTicks edges out of reset.
type SimController struct {
	SettleTicks int64

	count atomic.Int64
	ready atomic.Bool
}

func NewSimController(settleTicks int64) *SimController {
	if settleTicks < 0 {
		settleTicks = 0
	}
	return &SimController{SettleTicks: settleTicks}
}

// Tick advances the controller one bring-up clock edge.
func (c *SimController) Tick(reset bool) {
	if reset {
		c.count.Store(0)
		c.ready.Store(false)
		return
	}
	n := c.count.Load()
	if n < c.SettleTicks {
		n++
		c.count.Store(n)
	}
	c.ready.Store(n >= c.SettleTicks)
}

func (c *SimController) Ready() bool { return c.ready.Load() }
