// Package crg assembles a clock/reset generator from its parts.
//
// Ownership boundary:
// - system configuration (frequencies, delays, calibration flag)
// - domain set derived from the synthesizer
// - per-clock tick functions and their ordering inside one edge
// - deterministic edge scheduling and free-running goroutine clocks
// - transition trace, logging and metrics
//
// Lifecycle order:
// - New -> (Scheduler | Run) -> AssertReset/ReleaseReset at any time
//
// Configuration is immutable after New.
package crg
