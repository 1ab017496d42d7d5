// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - WebSocket event stream, acknowledge-gated shells, run estimates
// 0.2.0 - Fractal lattice generator with global distance sort
// 0.1.0 - Initial release: Halley shells, photometry table, TUI progress
