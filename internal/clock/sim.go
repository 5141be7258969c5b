package clock

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrOutputOutOfRange = errors.New("clock: output out of range")
	ErrNotProgrammed    = errors.New("clock: synthesizer not programmed")
)

// SimSynth models a mixed-mode clock manager. It locks after LockTicks
// consecutive reference edges out of reset.
type SimSynth struct {
	MaxOutput Hz
	LockTicks int64

	mu         sync.Mutex
	reference  Hz
	outputs    []Hz
	programmed atomic.Bool

	reset  atomic.Bool
	count  atomic.Int64
	locked atomic.Bool
}

func NewSimSynth(maxOutput Hz, lockTicks int64) *SimSynth {
	if lockTicks < 1 {
		lockTicks = 1
	}
	return &SimSynth{MaxOutput: maxOutput, LockTicks: lockTicks}
}

func (s *SimSynth) Program(reference Hz, outputs []Hz) error {
	for i, out := range outputs {
		if !out.Valid() || (s.MaxOutput > 0 && out > s.MaxOutput) {
			return fmt.Errorf("%w: outputs[%d]=%s max=%s", ErrOutputOutOfRange, i, out, s.MaxOutput)
		}
	}
	s.mu.Lock()
	s.reference = reference
	s.outputs = append(s.outputs[:0], outputs...)
	s.mu.Unlock()
	s.programmed.Store(true)
	s.Unlock()
	return nil
}

// Outputs returns the programmed output frequencies.
func (s *SimSynth) Outputs() (Hz, []Hz, error) {
	if !s.programmed.Load() {
		return 0, nil, ErrNotProgrammed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Hz, len(s.outputs))
	copy(out, s.outputs)
	return s.reference, out, nil
}

func (s *SimSynth) Locked() bool { return s.locked.Load() }

// SetReset drives the synthesizer's reset input. Assertion drops lock at once.
func (s *SimSynth) SetReset(asserted bool) {
	s.reset.Store(asserted)
	if asserted {
		s.Unlock()
	}
}

// Unlock drops lock and restarts the lock counter.
func (s *SimSynth) Unlock() {
	s.count.Store(0)
	s.locked.Store(false)
}

// Tick advances the lock detector by one reference edge.
func (s *SimSynth) Tick() {
	if s.reset.Load() || !s.programmed.Load() {
		s.Unlock()
		return
	}
	if n := s.count.Load(); n < s.LockTicks {
		n++
		s.count.Store(n)
		s.locked.Store(n >= s.LockTicks)
	}
}
