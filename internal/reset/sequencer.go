package reset

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/crgctl/internal/signal"
)

var ErrMissingInput = errors.New("reset: missing sequencer input")

// Config holds the two independent stage delays, in ticks of each stage's clock.
type Config struct {
	Stage1Delay uint32
	Stage2Delay uint32
}

func DefaultConfig() Config {
	return Config{Stage1Delay: DefaultDelay, Stage2Delay: DefaultDelay}
}

// Inputs are the asynchronous levels the sequencer samples.
type Inputs struct {
	ExternalReset signal.Level
	Lock          signal.Level
	// Ready is the CalibrationGate output. A tied-off level is used directly;
	// any other level is synchronized into the primary clock.
	Ready signal.Level
}

// Lines are the optional reset lines driven by the primary loop.
type Lines struct {
	// Primary receives the DomainResetController output.
	Primary ResetLine
	// Handoff receives the intermediate reset as seen in the primary clock.
	Handoff ResetLine
}

// Snapshot is a point-in-time view of both loops.
type Snapshot struct {
	State             State
	Countdown1        uint32
	Countdown2        uint32
	IntermediateReset bool
	PrimaryReset      bool
	BringUpTicks      uint64
	PrimaryTicks      uint64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s cd1=%d cd2=%d ireset=%t preset=%t",
		s.State, s.Countdown1, s.Countdown2, s.IntermediateReset, s.PrimaryReset)
}

type bringUpLoop struct {
	countdown    *Countdown
	phase        atomic.Int32
	intermediate *signal.Wire
	ticks        atomic.Uint64
	// rearms counts armed bring-up edges. The primary loop acknowledges each
	// one, so a re-arm that ends between two primary edges is still seen.
	rearms atomic.Uint64
}

type primaryLoop struct {
	countdown *Countdown
	phase     atomic.Int32
	release   *signal.ResetSynchronizer
	ready     *signal.Synchronizer
	released  atomic.Bool
	acked     atomic.Uint64
	ticks     atomic.Uint64
	primary   *DomainResetController
	handoff   ResetLine
}

// Sequencer is the two-stage reset state machine. TickBringUp must only be
// called from the bring-up clock and TickPrimary only from the primary clock;
// the two may run concurrently.
type Sequencer struct {
	cfg      Config
	extReset signal.Level
	lock     signal.Level
	ready    signal.Level

	bringUp bringUpLoop
	primary primaryLoop
}

func NewSequencer(cfg Config, in Inputs, lines Lines) (*Sequencer, error) {
	if in.ExternalReset == nil {
		return nil, fmt.Errorf("%w: external reset", ErrMissingInput)
	}
	if in.Lock == nil {
		return nil, fmt.Errorf("%w: lock", ErrMissingInput)
	}
	if in.Ready == nil {
		return nil, fmt.Errorf("%w: ready", ErrMissingInput)
	}
	s := &Sequencer{
		cfg:      cfg,
		extReset: in.ExternalReset,
		lock:     in.Lock,
		ready:    in.Ready,
		bringUp: bringUpLoop{
			countdown:    newCountdown(cfg.Stage1Delay),
			intermediate: signal.NewWire(true),
		},
		primary: primaryLoop{
			countdown: newCountdown(cfg.Stage2Delay),
			release:   signal.NewResetSynchronizer(),
			primary:   NewDomainResetController(lines.Primary),
			handoff:   lines.Handoff,
		},
	}
	if _, tied := signal.IsConst(in.Ready); !tied {
		s.primary.ready = signal.NewSynchronizer(false)
	}
	s.primary.primary.Drive(false, false)
	if s.primary.handoff != nil {
		s.primary.handoff.SetReset(true)
	}
	return s, nil
}

func (s *Sequencer) Config() Config { return s.cfg }

// TickBringUp advances the bring-up loop by one clock edge.
func (s *Sequencer) TickBringUp() {
	b := &s.bringUp
	b.ticks.Add(1)
	if s.extReset.Level() || !s.lock.Level() {
		b.intermediate.Set(true)
		b.rearms.Add(1)
		b.countdown.Reload()
		b.phase.Store(int32(bringUpArmed))
		return
	}
	if b.countdown.Step() {
		b.intermediate.Set(false)
		b.phase.Store(int32(bringUpDone))
		return
	}
	b.phase.Store(int32(bringUpCounting))
}

// TickPrimary advances the primary loop by one clock edge.
func (s *Sequencer) TickPrimary() {
	p := &s.primary
	p.ticks.Add(1)
	ext := s.extReset.Level()

	if gen := s.bringUp.rearms.Load(); gen != p.acked.Load() {
		p.release.Assert()
		p.released.Store(false)
		p.acked.Store(gen)
	}
	held := p.release.Clock(ext || s.bringUp.intermediate.Level())
	ready := s.ready.Level()
	if p.ready != nil {
		ready = p.ready.Clock(ready)
	}
	if p.handoff != nil {
		p.handoff.SetReset(held)
	}

	switch {
	case ext || held:
		p.released.Store(false)
		p.countdown.Reload()
		if p.ready != nil && ext {
			p.ready.Clear()
		}
		p.phase.Store(int32(primaryHeld))
	case primaryPhase(p.phase.Load()) == primaryReleased:
	case !ready:
		p.phase.Store(int32(primaryWaiting))
	case p.countdown.Step():
		p.released.Store(true)
		p.phase.Store(int32(primaryReleased))
	default:
		p.phase.Store(int32(primaryCounting))
	}
	p.primary.Drive(s.Released(), ext)
}

// State combines the phases of both loops. An external reset request reads as
// ARMED at once; while the intermediate reset is asserted the bring-up loop
// alone decides the state.
func (s *Sequencer) State() State {
	if s.extReset.Level() {
		return StateArmed
	}
	if s.bringUp.intermediate.Level() {
		if bringUpPhase(s.bringUp.phase.Load()) == bringUpArmed {
			return StateArmed
		}
		return StateCountingStage1
	}
	if s.rearmPending() {
		return StateCountingStage1
	}
	switch primaryPhase(s.primary.phase.Load()) {
	case primaryReleased:
		return StateReleased
	case primaryCounting:
		return StateCountingStage2
	case primaryWaiting:
		return StateWaitingReady
	}
	return StateCountingStage1
}

// IntermediateReset reports the bring-up loop's intermediate reset output.
func (s *Sequencer) IntermediateReset() bool {
	return s.bringUp.intermediate.Level()
}

// IntermediateResetLevel exposes the intermediate reset as a level for
// consumers in the bring-up clock, such as the calibration controller.
func (s *Sequencer) IntermediateResetLevel() signal.Level {
	return s.bringUp.intermediate
}

// Released reports the primary loop's release bit. A re-arm of the bring-up
// loop clears it without waiting for a primary edge, and it stays clear until
// the primary loop has acknowledged the re-arm and run stage 2 again.
func (s *Sequencer) Released() bool {
	return s.primary.released.Load() && !s.bringUp.intermediate.Level() && !s.rearmPending()
}

func (s *Sequencer) rearmPending() bool {
	return s.bringUp.rearms.Load() != s.primary.acked.Load()
}

// PrimaryReset is the primary-domain reset bit.
func (s *Sequencer) PrimaryReset() bool {
	return Apply(s.Released(), s.extReset.Level())
}

func (s *Sequencer) Countdown1() *Countdown { return s.bringUp.countdown }

func (s *Sequencer) Countdown2() *Countdown { return s.primary.countdown }

func (s *Sequencer) Snapshot() Snapshot {
	return Snapshot{
		State:             s.State(),
		Countdown1:        s.bringUp.countdown.Value(),
		Countdown2:        s.primary.countdown.Value(),
		IntermediateReset: s.IntermediateReset(),
		PrimaryReset:      s.PrimaryReset(),
		BringUpTicks:      s.bringUp.ticks.Load(),
		PrimaryTicks:      s.primary.ticks.Load(),
	}
}
