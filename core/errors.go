package core

import "errors"

// Sentinel errors for structurally invalid requests. Per-plugin execution
// failures are never surfaced through these; they are isolated at the
// orchestrator boundary and reported via run records and notifications.
var (
	// ErrUnknownAnalysis is returned when an operation references an
	// analysis id that was never started.
	ErrUnknownAnalysis = errors.New("unknown analysis")
	// ErrUnknownPlugin is returned when an operation references a plugin
	// that was never executed for the analysis.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrUnknownSection is returned when a section rerun references a
	// section id the agent does not produce.
	ErrUnknownSection = errors.New("unknown section")
	// ErrUnknownFramework is returned when registering an agent whose
	// framework id is outside the closed framework set.
	ErrUnknownFramework = errors.New("unknown framework")
	// ErrAlreadyRegistered is returned when two agents claim the same
	// framework id.
	ErrAlreadyRegistered = errors.New("agent already registered")
)
