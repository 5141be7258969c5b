package calib

import "github.com/danmuck/crgctl/internal/signal"

// Controller is the external calibration capability.
type Controller interface {
	// Ready samples the asynchronous readiness output.
	Ready() bool
}

// ControllerFunc adapts a sampling function to a Controller.
type ControllerFunc func() bool

func (f ControllerFunc) Ready() bool { return f() }

// Gate selects the readiness source at configuration time. A present subsystem
// without a controller never becomes ready.
func Gate(present bool, ctrl Controller) signal.Level {
	if !present {
		return signal.Const(true)
	}
	if ctrl == nil {
		return signal.Const(false)
	}
	return signal.Func(ctrl.Ready)
}
