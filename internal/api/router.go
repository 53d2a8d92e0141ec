package api

import (
	"embed"
	"io/fs"
	"net/http"
)

// registerAPIRoutes registers all API endpoints on the given mux
func registerAPIRoutes(mux *http.ServeMux, h *Handler) {
	// Sessions: upload, analyze, view
	mux.HandleFunc("POST /api/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.DeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/upload", h.Upload)
	mux.HandleFunc("DELETE /api/sessions/{id}/upload", h.ClearUpload)
	mux.HandleFunc("GET /api/sessions/{id}/video", h.Video)
	mux.HandleFunc("POST /api/sessions/{id}/media", h.Media)
	mux.HandleFunc("POST /api/sessions/{id}/analyze", h.Analyze)
	mux.HandleFunc("DELETE /api/sessions/{id}/analyze", h.CancelAnalysis)
	mux.HandleFunc("GET /api/sessions/{id}/analysis", h.Analysis)
	mux.HandleFunc("GET /api/sessions/{id}/scene", h.Scene)
	mux.HandleFunc("GET /api/sessions/{id}/replay", h.Replay)

	// Job management
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/stream", h.JobStream)
	mux.HandleFunc("POST /api/jobs/clear", h.ClearQueue)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.CancelJob)

	// Queue control (stop/resume)
	mux.HandleFunc("POST /api/queue/pause", h.PauseQueue)
	mux.HandleFunc("POST /api/queue/resume", h.ResumeQueue)

	// Configuration
	mux.HandleFunc("GET /api/config", h.GetConfig)
	mux.HandleFunc("PUT /api/config", h.UpdateConfig)

	// Misc
	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("POST /api/stats/reset-session", h.ResetSession)
}

// NewRouter creates a new HTTP router with all API endpoints
func NewRouter(h *Handler, staticFS embed.FS) *http.ServeMux {
	mux := http.NewServeMux()

	// Register all API routes
	registerAPIRoutes(mux, h)

	// Serve static files from web/templates
	staticSubFS, err := fs.Sub(staticFS, "web/templates")
	if err != nil {
		// Fall back to empty handler if no static files
		mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Hawkeye API - No UI available"))
		})
		return mux
	}

	// Serve index.html at root
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		content, err := fs.ReadFile(staticSubFS, "index.html")
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write(content)
	})

	return mux
}
