// Package icloud is the HTTP client for the remote photo service:
// sign-in, two-factor verification, paginated library listing, and
// per-item download in original or preview variants. Transient service
// failures are retried with a fixed-delay bounded policy; credential
// failures are terminal.
package icloud
