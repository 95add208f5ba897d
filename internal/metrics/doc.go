// Package metrics records upgrade run measurements and exports them in the Prometheus text format.
package metrics
