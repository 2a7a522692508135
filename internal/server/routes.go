package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/images", h.UploadImage)
	mux.HandleFunc("DELETE /api/images/{id}", h.DeleteImage)
	mux.HandleFunc("GET /files/{name...}", h.ServeFile)

	mux.HandleFunc("POST /api/projects", h.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)

	mux.HandleFunc("POST /api/personas", h.CreatePersona)
	mux.HandleFunc("GET /api/personas/{id}/status", h.PersonaStatus)

	mux.HandleFunc("POST /api/scripts", h.CreateScript)
	mux.HandleFunc("GET /api/scripts/{id}/status", h.ScriptStatus)

	mux.HandleFunc("POST /api/videos", h.CreateVideo)
	mux.HandleFunc("GET /api/videos/{id}/status", h.VideoStatus)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
