// Package server exposes the training-history store and the catalog
// proxy over HTTP for the app frontend.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/gymdex/internal/catalog"
	"github.com/claude/gymdex/internal/prefs"
	"github.com/claude/gymdex/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	mgr     *storage.Manager
	store   *storage.Store
	catalog *catalog.Client
	prefs   *prefs.Store
	log     *slog.Logger
	apiKey  string
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(mgr *storage.Manager, store *storage.Store, cat *catalog.Client, prefStore *prefs.Store, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		mgr:     mgr,
		store:   store,
		catalog: cat,
		prefs:   prefStore,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/api/v1/healthz", s.handleHealthz)

	// Training history
	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/", s.handleSaveSession)
			r.Delete("/{id}", s.handleDeleteSession)
		})
	})
	s.router.Get("/api/v1/users/{userID}/stats", s.handleUserStats)

	// Catalog proxy
	s.router.Route("/api/v1/routines", func(r chi.Router) {
		r.Get("/", s.handleListRoutines)
		r.Get("/{id}", s.handleGetRoutine)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/", s.handleCreateRoutine)
			r.Put("/{id}", s.handleUpdateRoutine)
			r.Delete("/{id}", s.handleDeleteRoutine)
		})
	})

	// Preferences
	s.router.Get("/api/v1/prefs", s.handleGetPrefs)
	s.router.With(APIKeyAuth(s.apiKey)).Put("/api/v1/prefs", s.handlePutPrefs)

	// Last-resort wipe (API key required)
	s.router.With(APIKeyAuth(s.apiKey)).Post("/api/v1/admin/reset", s.handleReset)
}
