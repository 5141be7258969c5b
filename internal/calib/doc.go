// Package calib owns the readiness signal of the optional calibration subsystem.
//
// When the subsystem is instantiated the readiness level is the live output of
// the external controller. When it is not, readiness is tied high so that only
// the two fixed delays gate the primary domain.
package calib
