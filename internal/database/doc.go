// Package database persists users, browser sessions, and photo metadata
// rows in SQLite. Photo file bytes live on disk under the store package's
// control; this package only tracks them.
package database
