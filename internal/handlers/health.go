package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
	"photovault/internal/startup"
)

var processStart = time.Now()

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	TotalImages int `json:"totalImages"`
	TotalVideos int `json:"totalVideos"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service health and stored photo counts.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(processStart).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	counts, err := h.db.CountPhotosByKind(r.Context())
	if err != nil {
		response.Status = statusDegraded
	} else {
		response.TotalImages = counts[mediatypes.KindImage]
		response.TotalVideos = counts[mediatypes.KindVideo]
		for _, kind := range []mediatypes.Kind{mediatypes.KindImage, mediatypes.KindVideo, mediatypes.KindOther} {
			metrics.StoredPhotosTotal.WithLabelValues(string(kind)).Set(float64(counts[kind]))
		}
	}

	h.db.UpdateDBMetrics()

	w.Header().Set("Content-Type", "application/json")
	if response.Status != statusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck always returns 200 while the process is running.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}
