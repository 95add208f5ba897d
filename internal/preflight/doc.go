// Package preflight inspects the project worktree before the upgrade mutates it.
package preflight
