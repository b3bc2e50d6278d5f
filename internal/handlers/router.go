package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP route table. Everything outside /api/auth/
// and the probe endpoints requires a valid session.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Probes and build info
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	// Local account
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/setup", h.CheckSetupRequired).Methods(http.MethodGet)
	auth.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	auth.HandleFunc("/check", h.CheckAuth).Methods(http.MethodGet)

	// Local library
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/password", h.ChangePassword).Methods(http.MethodPost)
	api.HandleFunc("/photos", h.ListPhotos).Methods(http.MethodGet)
	api.HandleFunc("/photos", h.UploadPhoto).Methods(http.MethodPost)
	api.HandleFunc("/photos/upload", h.UploadPhoto).Methods(http.MethodPost)
	api.HandleFunc("/photos", h.DeleteAllPhotos).Methods(http.MethodDelete)
	api.HandleFunc("/photos/delete", h.DeletePhotos).Methods(http.MethodPost)
	api.HandleFunc("/photos/{id:[0-9]+}/thumbnail", h.GetPhotoThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/photos/{id:[0-9]+}/download", h.DownloadPhoto).Methods(http.MethodGet)
	api.HandleFunc("/photos/{id:[0-9]+}/stream", h.StreamPhoto).Methods(http.MethodGet)

	// Remote account
	api.HandleFunc("/icloud/login", h.ICloudLogin).Methods(http.MethodPost)
	api.HandleFunc("/icloud/verify", h.ICloudVerify).Methods(http.MethodPost)
	api.HandleFunc("/icloud/status", h.ICloudStatus).Methods(http.MethodGet)
	api.HandleFunc("/icloud/photos", h.ICloudPhotos).Methods(http.MethodGet)
	api.HandleFunc("/icloud/thumbnail", h.ICloudThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/icloud/import", h.ICloudImport).Methods(http.MethodPost)
	api.HandleFunc("/icloud/logout", h.ICloudLogout).Methods(http.MethodPost)

	r.Use(mux.MiddlewareFunc(h.AuthMiddleware))

	return r
}
