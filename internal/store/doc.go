// Package store is the authoritative local media store: per-owner photo
// files on disk plus their metadata rows, kept in step so a row never
// outlives its file nor vice versa.
package store
