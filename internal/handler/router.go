package handler

import (
	"log/slog"
	"net/http"

	"smart-notes-server/internal/config"
	"smart-notes-server/internal/middleware"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Notes      *NoteHandler
	Encryption *EncryptionHandler
	AI         *AIHandler
}

type RouterOptions struct {
	JWTSecret string
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	Logger    *slog.Logger
}

// NewRouter mounts the note and AI endpoints under /api/v1 behind bearer
// auth. /health stays public.
func NewRouter(h Handlers, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(opts.Logger))
	r.Use(middleware.CORSMiddleware(
		opts.CORS.AllowedOrigins,
		opts.CORS.AllowedMethods,
		opts.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(opts.JWTSecret))

	api.HandleFunc("/notes", h.Notes.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes", h.Notes.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}", h.Notes.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/{id}", h.Notes.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/notes/{id}", h.Notes.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/pin", h.Notes.TogglePin).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/versions", h.Notes.ListVersions).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/{id}/versions/{version}/restore", h.Notes.RestoreVersion).Methods("POST", "OPTIONS")

	api.HandleFunc("/notes/{id}/encrypt", h.Encryption.Encrypt).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/unlock", h.Encryption.Unlock).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/decrypt", h.Encryption.Decrypt).Methods("POST", "OPTIONS")

	ai := api.PathPrefix("/ai").Subrouter()
	if opts.RateLimit.Enabled {
		ai.Use(middleware.NewRateLimiter(opts.RateLimit.RequestsPerMinute).Middleware())
	}
	ai.HandleFunc("", h.AI.Invoke).Methods("POST", "OPTIONS")

	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"smart-notes-server"}`))
}
