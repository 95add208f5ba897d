// Package upgrade drives a build-tool dependency through an ordered list of
// candidate versions, verifying each with real builds and restoring the
// manifest snapshot whenever a candidate fails.
package upgrade
