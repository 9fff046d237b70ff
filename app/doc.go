// Package app wires scalestore together. New builds every client from a
// Config and returns a Context that owns their lifecycle; nothing is held
// in package-level state, so tests and tools can run several contexts side
// by side.
package app
