// Package journal records the audit trail of a single upgrade run.
//
// A Journal appends timestamped entries to a log artifact that persists after
// the run, echoes them to the operator console and mirrors them to the
// diagnostic zap logger. Every other component reports through a Journal.
package journal
