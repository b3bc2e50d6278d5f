package handlers

import (
	"context"
	"sync"

	"photovault/internal/database"
	"photovault/internal/importer"
	"photovault/internal/media"
	"photovault/internal/remote"
	"photovault/internal/startup"
	"photovault/internal/store"
)

type contextKey string

// userContextKey carries the authenticated user through the request
// context once AuthMiddleware has validated the session.
const userContextKey contextKey = "user"

type Handlers struct {
	db       *database.Database
	store    *store.Store
	remote   *remote.Manager
	importer *importer.Importer
	cache    *media.Cache

	thumbnailsEnabled bool

	// Active remote connection handle per local user. A user has at
	// most one remote session at a time.
	mu      sync.Mutex
	handles map[int64]string
}

func New(db *database.Database, s *store.Store, m *remote.Manager, imp *importer.Importer, cache *media.Cache, config *startup.Config) *Handlers {
	return &Handlers{
		db:                db,
		store:             s,
		remote:            m,
		importer:          imp,
		cache:             cache,
		thumbnailsEnabled: config.ThumbnailsEnabled,
		handles:           make(map[int64]string),
	}
}

// userFrom returns the authenticated user placed in the context by
// AuthMiddleware.
func userFrom(ctx context.Context) (*database.User, bool) {
	user, ok := ctx.Value(userContextKey).(*database.User)
	return user, ok
}

func (h *Handlers) handleFor(userID int64) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	handle, ok := h.handles[userID]
	return handle, ok
}

func (h *Handlers) setHandle(userID int64, handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handles[userID] = handle
}

func (h *Handlers) clearHandle(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handles, userID)
}
