package signal

// Stages is the depth of every synchronizer in this package.
const Stages = 2

// Synchronizer is a two-flop level synchronizer owned by the reading clock domain.
//
// Clock returns the value registered by the second flop before this edge, so a
// change on the input becomes visible on the second edge after it was sampled.
type Synchronizer struct {
	q1, q2 bool
	init   bool
}

// NewSynchronizer returns a synchronizer whose flops power up at initial.
func NewSynchronizer(initial bool) *Synchronizer {
	return &Synchronizer{q1: initial, q2: initial, init: initial}
}

// Clock advances the synchronizer by one edge of the reading clock.
func (s *Synchronizer) Clock(in bool) bool {
	out := s.q2
	s.q2 = s.q1
	s.q1 = in
	return out
}

// Clear forces both flops back to their power-up value.
func (s *Synchronizer) Clear() {
	s.q1, s.q2 = s.init, s.init
}

// ResetSynchronizer carries a reset request into a clock domain.
//
// Assertion is propagated on the same edge it is observed. Release is delayed by
// Stages edges of the reading clock.
type ResetSynchronizer struct {
	q1, q2 bool
}

// NewResetSynchronizer powers up with reset asserted.
func NewResetSynchronizer() *ResetSynchronizer {
	return &ResetSynchronizer{q1: true, q2: true}
}

// Clock returns true while the synchronized reset is asserted.
func (r *ResetSynchronizer) Clock(asserted bool) bool {
	if asserted {
		r.q1, r.q2 = true, true
		return true
	}
	out := r.q2
	r.q2 = r.q1
	r.q1 = false
	return out
}

// Assert sets both flops without an edge, as an asynchronous assertion does.
// The next Clock(false) still returns true, so release keeps its full latency.
func (r *ResetSynchronizer) Assert() {
	r.q1, r.q2 = true, true
}

// Asserted reports the current synchronized output without clocking.
func (r *ResetSynchronizer) Asserted() bool { return r.q2 }
