// Package verify runs the project build and inspects its output to decide whether a dependency upgrade works.
package verify
