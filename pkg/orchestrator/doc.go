// Package orchestrator wires the schema loader, session start and renderer
// registry into a single entry point: load → validate → start → render.
package orchestrator
