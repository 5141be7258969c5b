package crg

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/crgctl/internal/calib"
	"github.com/danmuck/crgctl/internal/clock"
	"github.com/danmuck/crgctl/internal/observability"
	"github.com/danmuck/crgctl/internal/reset"
	"github.com/danmuck/crgctl/internal/signal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transition is one observed change of sequencer state.
type Transition struct {
	From         reset.State
	To           reset.State
	BringUpTicks uint64
	PrimaryTicks uint64
}

// Option customizes New.
type Option func(*System)

// WithLogger replaces the global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *System) { s.log = logger }
}

// WithCalibrationController replaces the simulated calibration controller.
// It has no effect when calibration is disabled.
func WithCalibrationController(ctrl calib.Controller) Option {
	return func(s *System) { s.calibCtrl = ctrl }
}

// System is an assembled clock/reset generator.
type System struct {
	cfg Config
	log zerolog.Logger

	synth     *clock.SimSynth
	mult      *clock.Multiplier
	calibSim  *calib.SimController
	calibCtrl calib.Controller
	seq       *reset.Sequencer

	extReset     *signal.Wire
	bringUp      *clock.Domain
	primary      *clock.Domain
	handoff      *clock.Domain
	bringUpReset *clock.DomainReset

	refTicks     prometheus.Counter
	bringUpTicks prometheus.Counter
	primaryTicks prometheus.Counter

	last        atomic.Int32
	armedAt     atomic.Uint64
	mu          sync.Mutex
	transitions []Transition
}

func New(cfg Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{
		cfg:      cfg,
		log:      log.Logger,
		extReset: signal.NewWire(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("system", cfg.Name).Logger()

	s.synth = clock.NewSimSynth(cfg.MaxOutputHz, cfg.LockTicks)
	mult, err := clock.Configure(s.synth, cfg.ReferenceHz, cfg.OutputSpecs())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.mult = mult
	s.bringUp, _ = mult.Domain(cfg.BringUpDomain)
	s.primary, _ = mult.Domain(cfg.PrimaryDomain)
	if cfg.HandoffDomain != "" {
		s.handoff, _ = mult.Domain(cfg.HandoffDomain)
	}
	if s.primary.ResetLess {
		return nil, fmt.Errorf("%w: primary domain %q is reset-less", ErrInvalidConfig, cfg.PrimaryDomain)
	}

	lock := mult.Lock()
	if rst, ok := mult.DomainReset(cfg.BringUpDomain); ok {
		s.bringUpReset = rst
		lock = signal.Not(signal.Func(s.bringUp.Reset))
	}

	if cfg.WithCalibration && s.calibCtrl == nil {
		s.calibSim = calib.NewSimController(cfg.CalibrationSettleTicks)
		s.calibCtrl = s.calibSim
	}
	ready := calib.Gate(cfg.WithCalibration, s.calibCtrl)

	lines := reset.Lines{Primary: s.primary}
	if s.handoff != nil {
		lines.Handoff = s.handoff
	}
	seq, err := reset.NewSequencer(cfg.SequencerConfig(), reset.Inputs{
		ExternalReset: s.extReset,
		Lock:          lock,
		Ready:         ready,
	}, lines)
	if err != nil {
		return nil, err
	}
	s.seq = seq

	s.refTicks = observability.ClockTicks(cfg.Name, "reference")
	s.bringUpTicks = observability.ClockTicks(cfg.Name, s.bringUp.Name)
	s.primaryTicks = observability.ClockTicks(cfg.Name, s.primary.Name)
	s.last.Store(int32(seq.State()))
	s.publish()

	s.log.Debug().
		Stringer("reference", cfg.ReferenceHz).
		Str("bringup", s.bringUp.String()).
		Str("primary", s.primary.String()).
		Bool("calibration", cfg.WithCalibration).
		Uint32("stage1", cfg.Stage1Delay).
		Uint32("stage2", cfg.Stage2Delay).
		Msg("crg assembled")
	return s, nil
}

func (s *System) Config() Config { return s.cfg }

func (s *System) Sequencer() *reset.Sequencer { return s.seq }

func (s *System) Synthesizer() *clock.SimSynth { return s.synth }

// Domains returns every derived clock domain.
func (s *System) Domains() []*clock.Domain { return s.mult.Domains() }

func (s *System) Domain(name string) (*clock.Domain, bool) { return s.mult.Domain(name) }

func (s *System) BringUpDomain() *clock.Domain { return s.bringUp }

func (s *System) PrimaryDomain() *clock.Domain { return s.primary }

// CalibrationPresent is the derived "calibration subsystem present" flag.
func (s *System) CalibrationPresent() bool { return s.cfg.WithCalibration }

// LockIndicator mirrors the synthesizer lock status for a status output.
func (s *System) LockIndicator() bool { return s.synth.Locked() }

func (s *System) State() reset.State { return s.seq.State() }

func (s *System) Snapshot() reset.Snapshot { return s.seq.Snapshot() }

// ExternalReset reports the current external reset request.
func (s *System) ExternalReset() bool { return s.extReset.Level() }

// SetExternalReset drives the external reset request. The primary-domain reset
// asserts at once; both loops re-arm on their next edge.
func (s *System) SetExternalReset(asserted bool) {
	was := s.extReset.Level()
	s.extReset.Set(asserted)
	if asserted {
		s.synth.SetReset(true)
		s.primary.SetReset(true)
		if !was {
			observability.RecordExternalReset(s.cfg.Name)
			s.log.Info().Msg("external reset asserted")
		}
		return
	}
	if was {
		s.log.Info().Msg("external reset released")
	}
}

func (s *System) AssertReset() { s.SetExternalReset(true) }

func (s *System) ReleaseReset() { s.SetExternalReset(false) }

// TickReference advances the synthesizer by one reference edge.
func (s *System) TickReference() {
	s.synth.SetReset(s.extReset.Level())
	s.synth.Tick()
	s.refTicks.Inc()
}

// TickBringUp advances every register clocked by the bring-up clock. All of
// them sample values from before the edge.
func (s *System) TickBringUp() {
	ext := s.extReset.Level()
	intermediate := s.seq.IntermediateReset()
	s.seq.TickBringUp()
	if s.bringUpReset != nil {
		s.bringUpReset.Clock(ext)
	}
	if s.calibSim != nil {
		s.calibSim.Tick(intermediate)
	}
	s.bringUpTicks.Inc()
	s.observe()
}

// TickPrimary advances every register clocked by the primary clock.
func (s *System) TickPrimary() {
	s.seq.TickPrimary()
	s.primaryTicks.Inc()
	s.observe()
}

// Transitions returns the state changes observed since New.
func (s *System) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

func (s *System) observe() {
	now := s.seq.State()
	prev := reset.State(s.last.Swap(int32(now)))
	if prev == now {
		return
	}
	snap := s.seq.Snapshot()
	s.mu.Lock()
	s.transitions = append(s.transitions, Transition{
		From:         prev,
		To:           now,
		BringUpTicks: snap.BringUpTicks,
		PrimaryTicks: snap.PrimaryTicks,
	})
	s.mu.Unlock()

	switch now {
	case reset.StateArmed:
		s.armedAt.Store(snap.PrimaryTicks)
	case reset.StateReleased:
		observability.RecordRelease(s.cfg.Name, snap.PrimaryTicks-s.armedAt.Load())
	}
	observability.RecordTransition(s.cfg.Name, prev.String(), now.String())
	s.publish()

	s.log.Debug().
		Stringer("from", prev).
		Stringer("to", now).
		Uint32("cd1", snap.Countdown1).
		Uint32("cd2", snap.Countdown2).
		Uint64("bringup_ticks", snap.BringUpTicks).
		Uint64("primary_ticks", snap.PrimaryTicks).
		Msg("sequencer transition")
	if now == reset.StateReleased {
		s.log.Info().Str("domain", s.primary.Name).Msg("primary domain released")
	}
}

func (s *System) publish() {
	snap := s.seq.Snapshot()
	observability.SetSequencerState(s.cfg.Name, int(snap.State))
	observability.SetCountdowns(s.cfg.Name, snap.Countdown1, snap.Countdown2)
	for _, d := range s.mult.Domains() {
		if d.ResetLess {
			continue
		}
		observability.SetDomainReset(s.cfg.Name, d.Name, d.Reset())
	}
}
