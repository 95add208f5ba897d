// Package cipatch rewrites the CI deployment workflow to match the upgraded build toolchain.
package cipatch
