package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"photovault/internal/database"
	"photovault/internal/logging"
	"photovault/internal/media"
	"photovault/internal/mediatypes"
	"photovault/internal/store"
	"photovault/internal/streaming"

	"github.com/gorilla/mux"
)

const defaultPageSize = 20

// maxUploadSize bounds direct uploads at 1GiB.
const maxUploadSize = 1 << 30

// ListPhotos returns the current user's stored photos, paginated and
// optionally filtered by kind.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	opts := database.ListPhotoOptions{
		Page:     1,
		PageSize: defaultPageSize,
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		opts.Kind = mediatypes.Kind(kind)
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && pageSize > 0 && pageSize <= 100 {
		opts.PageSize = pageSize
	}

	listing, err := h.store.List(ctx, user.ID, opts)
	if err != nil {
		logging.Error("failed to list photos: %v", err)
		writeJSONError(w, "Failed to list photos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// UploadPhoto stores a photo sent directly as multipart form data.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	photo, err := h.store.Commit(ctx, user.ID, header.Filename, file)
	if err != nil {
		logging.Error("failed to store upload %q: %v", header.Filename, err)
		writeJSONError(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, photo)
}

// GetPhotoThumbnail serves a thumbnail for a stored photo, deriving
// and caching it on first request.
func (h *Handlers) GetPhotoThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.thumbnailsEnabled {
		writeJSONError(w, "Thumbnails disabled", http.StatusNotFound)
		return
	}

	id, err := photoID(r)
	if err != nil {
		writeJSONError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	photo, err := h.db.GetPhoto(ctx, user.ID, id)
	if err != nil {
		writeJSONError(w, "Photo not found", http.StatusNotFound)
		return
	}

	path, err := h.cache.GetOrCreate(user.ID, fmt.Sprintf("local:%d", photo.ID), func() ([]byte, error) {
		data, err := os.ReadFile(photo.Path)
		if err != nil {
			return nil, err
		}
		return media.Derive(data, photo.Kind)
	})
	if err != nil {
		logging.Warn("thumbnail for photo %d: %v", photo.ID, err)
		writeJSONError(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

// DownloadPhoto sends the original file as an attachment.
func (h *Handlers) DownloadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := photoID(r)
	if err != nil {
		writeJSONError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	photo, f, err := h.store.Open(ctx, user.ID, id)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(photo))
	w.Header().Set("Content-Length", strconv.FormatInt(photo.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", photo.Filename))

	if err := streaming.Copy(ctx, w, f, streaming.DefaultConfig()); err != nil {
		logging.Debug("download of photo %d aborted: %v", photo.ID, err)
	}
}

// StreamPhoto serves the file inline with range support, which video
// players need for seeking.
func (h *Handlers) StreamPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := photoID(r)
	if err != nil {
		writeJSONError(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	photo, f, err := h.store.Open(ctx, user.ID, id)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(photo))
	http.ServeContent(w, r, photo.Filename, info.ModTime(), f)
}

// DeletePhotosRequest selects stored photos for deletion.
type DeletePhotosRequest struct {
	IDs []int64 `json:"ids"`
}

// DeletePhotosResponse reports how many photos were removed.
type DeletePhotosResponse struct {
	Deleted int    `json:"deleted"`
	Warning string `json:"warning,omitempty"`
}

// DeletePhotos removes the selected photos, rows and files together.
func (h *Handlers) DeletePhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DeletePhotosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "No photo IDs given", http.StatusBadRequest)
		return
	}

	count, err := h.store.Delete(ctx, user.ID, req.IDs)
	resp := DeletePhotosResponse{Deleted: count}
	if err != nil {
		if !errors.Is(err, store.ErrFileMissing) {
			logging.Error("failed to delete photos: %v", err)
			writeJSONError(w, "Failed to delete photos", http.StatusInternalServerError)
			return
		}
		// Rows are gone; report the orphaned file cleanup problem.
		resp.Warning = "some files were already missing from disk"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// DeleteAllPhotos empties the current user's library.
func (h *Handlers) DeleteAllPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.store.DeleteAll(ctx, user.ID)
	resp := DeletePhotosResponse{Deleted: count}
	if err != nil {
		if !errors.Is(err, store.ErrFileMissing) {
			logging.Error("failed to delete all photos: %v", err)
			writeJSONError(w, "Failed to delete photos", http.StatusInternalServerError)
			return
		}
		resp.Warning = "some files were already missing from disk"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

func (h *Handlers) writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeJSONError(w, "Photo not found", http.StatusNotFound)
	case errors.Is(err, store.ErrFileMissing):
		writeJSONError(w, "Photo file missing from disk", http.StatusNotFound)
	default:
		logging.Error("failed to open photo: %v", err)
		writeJSONError(w, "Failed to open photo", http.StatusInternalServerError)
	}
}

func photoID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func contentTypeFor(photo *database.Photo) string {
	return mediatypes.MimeForExt(strings.ToLower(filepath.Ext(photo.Filename)))
}
