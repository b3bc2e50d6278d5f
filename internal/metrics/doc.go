// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics
