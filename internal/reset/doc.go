// Package reset owns the two-stage reset sequencer and the primary-domain
// reset controller.
//
// Ownership boundary:
// - countdowns (saturating, reloaded only by reset)
// - bring-up loop: lock -> countdown 1 -> intermediate reset release
// - primary loop: synchronized release -> readiness -> countdown 2 -> primary release
// - primary-domain reset line: external reset OR NOT released
//
// Lifecycle order:
// - ARMED -> COUNTING_STAGE1 -> WAITING_READY -> COUNTING_STAGE2 -> RELEASED
//
// - WAITING_READY is skipped when readiness is tied high.
//
// - external reset returns every state to ARMED within one tick of each clock.
//
// Each loop owns the signals it drives. The only values crossing between the
// loops are the intermediate reset and the readiness level, both of which are
// re-registered twice in the primary clock before use.
package reset
