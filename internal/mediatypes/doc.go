// Package mediatypes provides media kind classification and MIME type
// lookups shared across the store, importer, and HTTP layers.
package mediatypes
