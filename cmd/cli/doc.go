// Package cli constructs the toolbump command-line interface, wiring the
// Cobra command hierarchy, the embedded default configuration, and structured
// logging. It exposes helpers to build application instances and to execute
// the default command set.
package cli
