package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"photovault/internal/icloud"
	"photovault/internal/importer"
	"photovault/internal/logging"
	"photovault/internal/remote"
)

// ICloudLoginRequest carries the remote account credentials. They are
// forwarded to the remote service and never persisted or logged.
type ICloudLoginRequest struct {
	AppleID  string `json:"appleId"`
	Password string `json:"password"`
}

// ICloudVerifyRequest carries a two-factor verification code.
type ICloudVerifyRequest struct {
	Code string `json:"code"`
}

// ICloudStatusResponse reports the state of the remote connection.
// Challenge names the pending verification mechanism ("2fa" or "2sa")
// while the state is "pending_challenge".
type ICloudStatusResponse struct {
	State     string `json:"state"`
	Challenge string `json:"challenge,omitempty"`
}

// ICloudImportRequest selects remote items to import.
type ICloudImportRequest struct {
	Items []importer.Selection `json:"items"`
}

// ICloudLogin connects the user's remote photo account. The response
// state is "pending_challenge" when a verification code is required,
// or "listing" when browsing can begin immediately.
func (h *Handlers) ICloudLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ICloudLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AppleID == "" || req.Password == "" {
		writeJSONError(w, "Apple ID and password are required", http.StatusBadRequest)
		return
	}

	// Replace any previous connection.
	if handle, found := h.handleFor(user.ID); found {
		h.remote.Clear(handle)
		h.clearHandle(user.ID)
	}

	handle, state, err := h.remote.Begin(ctx, user.ID, req.AppleID, req.Password)
	if err != nil {
		h.writeRemoteError(w, err)
		return
	}
	h.setHandle(user.ID, handle)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ICloudStatusResponse{
		State:     string(state),
		Challenge: string(h.remote.Challenge(handle)),
	})
}

// ICloudVerify submits a two-factor code for a pending connection.
func (h *Handlers) ICloudVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	handle, found := h.handleFor(user.ID)
	if !found {
		writeJSONError(w, "No remote connection", http.StatusConflict)
		return
	}

	var req ICloudVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		writeJSONError(w, "Verification code is required", http.StatusBadRequest)
		return
	}

	state, err := h.remote.Verify(ctx, handle, req.Code)
	if err != nil {
		if state == remote.StateUnauthenticated {
			h.clearHandle(user.ID)
		}
		h.writeRemoteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ICloudStatusResponse{State: string(state)})
}

// ICloudStatus reports the current remote connection state.
func (h *Handlers) ICloudStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	state := remote.StateUnauthenticated
	challenge := icloud.ChallengeNone
	if handle, found := h.handleFor(user.ID); found {
		state = h.remote.State(handle)
		challenge = h.remote.Challenge(handle)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ICloudStatusResponse{
		State:     string(state),
		Challenge: string(challenge),
	})
}

// ICloudPhotos lists one page of the connected remote library.
func (h *Handlers) ICloudPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	handle, found := h.handleFor(user.ID)
	if !found {
		writeJSONError(w, "No remote connection", http.StatusConflict)
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	listing, err := h.importer.BrowsePage(ctx, handle, page)
	if err != nil {
		h.writeRemoteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// ICloudThumbnail serves the cached thumbnail of one remote item.
func (h *Handlers) ICloudThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	handle, found := h.handleFor(user.ID)
	if !found {
		writeJSONError(w, "No remote connection", http.StatusConflict)
		return
	}

	id := r.URL.Query().Get("id")
	filename := r.URL.Query().Get("filename")
	if id == "" {
		writeJSONError(w, "Photo ID is required", http.StatusBadRequest)
		return
	}

	path, err := h.importer.Thumbnail(ctx, handle, id, filename)
	if err != nil {
		logging.Warn("remote thumbnail %s: %v", id, err)
		h.writeRemoteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

// ICloudImport downloads the selected remote items into local storage
// and tears down the remote connection.
func (h *Handlers) ICloudImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	handle, found := h.handleFor(user.ID)
	if !found {
		writeJSONError(w, "No remote connection", http.StatusConflict)
		return
	}

	var req ICloudImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		writeJSONError(w, "No items selected", http.StatusBadRequest)
		return
	}

	result, err := h.importer.Import(ctx, handle, req.Items)
	h.clearHandle(user.ID)
	if err != nil {
		h.writeRemoteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// ICloudLogout drops the remote connection without importing.
func (h *Handlers) ICloudLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if handle, found := h.handleFor(user.ID); found {
		h.remote.Clear(handle)
		h.clearHandle(user.ID)
	}

	writeJSONStatus(w, "disconnected")
}

// writeRemoteError maps remote connection failures to HTTP responses.
func (h *Handlers) writeRemoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, icloud.ErrInvalidCredentials):
		writeJSONError(w, "Invalid Apple ID or password", http.StatusUnauthorized)
	case errors.Is(err, icloud.ErrInvalidCode):
		writeJSONError(w, "Invalid verification code", http.StatusUnauthorized)
	case errors.Is(err, icloud.Err2FARequired), errors.Is(err, remote.ErrNotReady):
		writeJSONError(w, "Two-factor verification required", http.StatusForbidden)
	case errors.Is(err, icloud.ErrAuthExpired):
		writeJSONError(w, "Remote session expired, sign in again", http.StatusUnauthorized)
	case errors.Is(err, remote.ErrNoSession):
		writeJSONError(w, "No remote connection", http.StatusConflict)
	case errors.Is(err, icloud.ErrNotFound):
		writeJSONError(w, "Item not found", http.StatusNotFound)
	case errors.Is(err, icloud.ErrServiceUnavailable):
		writeJSONError(w, "Remote service unavailable, try again later", http.StatusBadGateway)
	default:
		logging.Error("remote operation failed: %v", err)
		writeJSONError(w, "Remote operation failed", http.StatusInternalServerError)
	}
}
