// Package manifest reads and edits the JavaScript dependency manifest while
// preserving its key order and two-space indentation.
//
// Edits are applied to an in-memory Document and written back with an atomic
// replace, so the file on disk is always either the previous document or the
// complete edited one.
package manifest
