// Package logging defines the minimal Logger interface used across
// ThreatMesh plus slog-backed and no-op implementations.
package logging
