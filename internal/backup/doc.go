// Package backup snapshots and restores the dependency manifest and its lock file.
package backup
