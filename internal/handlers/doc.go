// Package handlers provides the HTTP API.
//
// It includes handlers for:
//   - Local account registration, login, and sessions
//   - Stored photo listing, thumbnails, download, streaming, deletion
//   - Connecting a remote photo account with two-factor verification
//   - Browsing the remote library and importing selected items
//   - Health checks, metrics, and build information
package handlers
