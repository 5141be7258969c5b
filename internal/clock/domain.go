package clock

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
)

// Hz is a frequency in hertz.
type Hz float64

const (
	KHz Hz = 1e3
	MHz Hz = 1e6
)

func (f Hz) String() string {
	switch {
	case f >= MHz:
		return strconv.FormatFloat(float64(f/MHz), 'f', -1, 64) + "MHz"
	case f >= KHz:
		return strconv.FormatFloat(float64(f/KHz), 'f', -1, 64) + "kHz"
	default:
		return strconv.FormatFloat(float64(f), 'f', -1, 64) + "Hz"
	}
}

// Valid reports whether f is a finite positive frequency. NaN fails the
// comparison, so it is rejected along with zero and negatives.
func (f Hz) Valid() bool {
	return f > 0 && !math.IsInf(float64(f), 1)
}

// PeriodPS returns the clock period in picoseconds, rounded to the nearest
// integer. Invalid frequencies have no period.
func (f Hz) PeriodPS() int64 {
	if !f.Valid() {
		return 0
	}
	return int64(1e12/float64(f) + 0.5)
}

// Domain is one region of logic driven by a single clock.
type Domain struct {
	Name      string
	Frequency Hz
	// ResetLess domains carry no reset line; Reset always reports false.
	ResetLess bool
	// SyncReset is set when the domain's reset passes through the multiplier's
	// own reset synchronizer.
	SyncReset bool
	// Source names the synthesized output a buffer-divided domain is derived from.
	Source string
	Divide int

	reset atomic.Bool
}

func newDomain(name string, freq Hz, resetLess bool) *Domain {
	d := &Domain{Name: name, Frequency: freq, ResetLess: resetLess}
	if !resetLess {
		d.reset.Store(true)
	}
	return d
}

// Reset reports whether the domain is currently held in reset.
func (d *Domain) Reset() bool {
	return d.reset.Load()
}

// SetReset drives the domain's reset line. It is a no-op on reset-less domains.
func (d *Domain) SetReset(asserted bool) {
	if d.ResetLess {
		return
	}
	d.reset.Store(asserted)
}

func (d *Domain) String() string {
	if d.Source != "" {
		return fmt.Sprintf("%s@%s(%s/%d)", d.Name, d.Frequency, d.Source, d.Divide)
	}
	return fmt.Sprintf("%s@%s", d.Name, d.Frequency)
}
