// Package media derives bounded JPEG thumbnails from raw image and
// video bytes and caches them on disk keyed by owner-qualified remote
// identity.
package media
