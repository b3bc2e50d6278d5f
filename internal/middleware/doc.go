// Package middleware provides the HTTP middleware chain: request
// logging with injection-safe fields, Prometheus request metrics with
// normalized paths, and gzip compression for text responses.
package middleware
