package crg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/crgctl/internal/clock"
	"github.com/danmuck/crgctl/internal/reset"
)

var ErrInvalidConfig = errors.New("crg: invalid config")

const (
	DomainSys4x  = "sys4x"
	DomainSys    = "sys"
	DomainClk200 = "clk200"
	DomainIC     = "ic"
)

// Config describes one clock/reset generator.
type Config struct {
	Name            string
	ReferenceHz     clock.Hz
	SystemClockHz   clock.Hz
	BringUpClockHz  clock.Hz
	WithCalibration bool

	Stage1Delay uint32
	Stage2Delay uint32

	// CalibrationSettleTicks is the simulated controller's settle time in
	// bring-up ticks after the intermediate reset releases.
	CalibrationSettleTicks int64
	// LockTicks is the simulated synthesizer's lock time in reference ticks.
	LockTicks   int64
	MaxOutputHz clock.Hz

	// Domains overrides DefaultDomains when non-empty.
	Domains       []clock.OutputSpec
	BringUpDomain string
	PrimaryDomain string
	// HandoffDomain optionally receives the intermediate reset as seen in the
	// primary clock.
	HandoffDomain string
}

func DefaultConfig() Config {
	return Config{
		Name:                   "crg",
		ReferenceHz:            125 * clock.MHz,
		SystemClockHz:          125 * clock.MHz,
		BringUpClockHz:         200 * clock.MHz,
		WithCalibration:        false,
		Stage1Delay:            reset.DefaultDelay,
		Stage2Delay:            reset.DefaultDelay,
		CalibrationSettleTicks: 32,
		LockTicks:              100,
		MaxOutputHz:            1440 * clock.MHz,
		BringUpDomain:          DomainClk200,
		PrimaryDomain:          DomainSys,
		HandoffDomain:          DomainIC,
	}
}

// DefaultDomains is the domain set of the reference board: a reset-less 4x
// fabric clock, the system clock divided from it, a bring-up clock with its
// own synchronized reset, and an alias of the system clock for the handoff.
func DefaultDomains(systemHz, bringUpHz clock.Hz) []clock.OutputSpec {
	return []clock.OutputSpec{
		{Name: DomainSys4x, Frequency: 4 * systemHz, ResetLess: true},
		{Name: DomainClk200, Frequency: bringUpHz, WithReset: true},
		{Name: DomainSys, Frequency: systemHz, Source: DomainSys4x, Divide: 4},
		{Name: DomainIC, Frequency: systemHz, Source: DomainSys4x, Divide: 4},
	}
}

// OutputSpecs returns the configured domain set.
func (c Config) OutputSpecs() []clock.OutputSpec {
	if len(c.Domains) > 0 {
		out := make([]clock.OutputSpec, len(c.Domains))
		copy(out, c.Domains)
		return out
	}
	return DefaultDomains(c.SystemClockHz, c.BringUpClockHz)
}

func (c Config) SequencerConfig() reset.Config {
	return reset.Config{Stage1Delay: c.Stage1Delay, Stage2Delay: c.Stage2Delay}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if !c.ReferenceHz.Valid() {
		return fmt.Errorf("%w: reference_hz must be a finite positive frequency", ErrInvalidConfig)
	}
	if !c.SystemClockHz.Valid() {
		return fmt.Errorf("%w: system_clock_hz must be a finite positive frequency", ErrInvalidConfig)
	}
	if !c.BringUpClockHz.Valid() {
		return fmt.Errorf("%w: bringup_clock_hz must be a finite positive frequency", ErrInvalidConfig)
	}
	if c.MaxOutputHz != 0 && !c.MaxOutputHz.Valid() {
		return fmt.Errorf("%w: max_output_hz must be zero or a finite positive frequency", ErrInvalidConfig)
	}
	if c.LockTicks < 1 {
		return fmt.Errorf("%w: lock_ticks must be at least 1", ErrInvalidConfig)
	}
	if c.CalibrationSettleTicks < 0 {
		return fmt.Errorf("%w: calibration_settle_ticks must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.BringUpDomain) == "" || strings.TrimSpace(c.PrimaryDomain) == "" {
		return fmt.Errorf("%w: bring-up and primary domains are required", ErrInvalidConfig)
	}
	if c.BringUpDomain == c.PrimaryDomain {
		return fmt.Errorf("%w: bring-up and primary domain must differ", ErrInvalidConfig)
	}
	specs := c.OutputSpecs()
	if !hasSpec(specs, c.BringUpDomain) {
		return fmt.Errorf("%w: bring-up domain %q not defined", ErrInvalidConfig, c.BringUpDomain)
	}
	if !hasSpec(specs, c.PrimaryDomain) {
		return fmt.Errorf("%w: primary domain %q not defined", ErrInvalidConfig, c.PrimaryDomain)
	}
	if c.HandoffDomain != "" && !hasSpec(specs, c.HandoffDomain) {
		return fmt.Errorf("%w: handoff domain %q not defined", ErrInvalidConfig, c.HandoffDomain)
	}
	return nil
}

func hasSpec(specs []clock.OutputSpec, name string) bool {
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == name {
			return true
		}
	}
	return false
}
