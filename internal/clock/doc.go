// Package clock owns clock-domain derivation from one reference clock.
//
// Ownership boundary:
// - clock domain descriptors (name, nominal frequency, reset flag)
// - output specs handed to the external synthesizer
// - buffer-divided domains derived from a synthesized output
// - lock status exposure
//
// Frequency synthesis itself is an external capability (Synthesizer). Lock is an
// asynchronous level; the package never reports a missing lock as an error.
package clock
