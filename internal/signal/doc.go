// Package signal owns single-bit level signals shared between clocked loops.
//
// Ownership boundary:
// - level sources (constant, driven wire)
// - two-flop resynchronization for levels crossing a clock-domain boundary
// - reset synchronizers (asynchronous assert, synchronous release)
//
// A Level is only ever sampled. Writers own the wire they drive; every other
// loop reads it through a synchronizer clocked by the reader's own clock.
package signal
