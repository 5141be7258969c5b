// Package commands implements the crgctl command tree.
//
// Every command resolves one crg.Config (defaults -> --config file ->
// CRGCTL_* environment -> flags) before it runs.
package commands
