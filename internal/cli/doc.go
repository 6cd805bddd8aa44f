// Package cli wires together the Cobra command trees for the critic and
// fanout binaries.
//
// It binds flags, reads configuration, invokes the review engine or the
// fan-out coordinator, and returns deterministic exit codes.
package cli
