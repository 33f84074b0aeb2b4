// Package server exposes the watchlist HTTP API: catalog CRUD, TMDB search,
// recommendations, import/export, and maintenance.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gvega2212/MovieWatchlist/internal/config"
	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/recommend"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

// Catalog is the slice of the TMDB client the server uses. Satisfied by
// *tmdb.Client; replaced by a stub in tests.
type Catalog interface {
	recommend.Catalog
	SearchMovies(ctx context.Context, query string, page int) ([]tmdb.Movie, error)
	MovieDetails(ctx context.Context, tmdbID int64) (*tmdb.MovieDetails, error)
	Trending(ctx context.Context, page int) ([]tmdb.Movie, error)
	TopRated(ctx context.Context, page int) ([]tmdb.Movie, error)
	Popular(ctx context.Context, page int) ([]tmdb.Movie, error)
	NowPlaying(ctx context.Context, page int) ([]tmdb.Movie, error)
	PosterURL(path string) string
}

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	catalog Catalog
	engine  *recommend.Engine
	cfg     *config.Config
	log     zerolog.Logger
}

// New creates a new HTTP server.
func New(s store.Store, catalog Catalog, engine *recommend.Engine, cfg *config.Config, log zerolog.Logger) *Server {
	return &Server{
		store:   s,
		catalog: catalog,
		engine:  engine,
		cfg:     cfg,
		log:     log,
	}
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	auth := requireAuth(s.cfg.Auth.APIToken)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User"},
	}))
	r.Use(requestLogger(s.log))
	r.Use(observeRequests)
	r.Use(withOwner)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<h1>Movie Watchlist API</h1><p>Use /api/health and /api/movies</p>")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleListMovies)
			r.With(auth).Post("/", s.handleCreateMovie)
			r.With(auth).Post("/from-tmdb", s.handleAddFromTMDB)
			r.With(auth).Post("/bulk/from-tmdb", s.handleBulkFromTMDB)

			r.Route("/{movieID}", func(r chi.Router) {
				r.Get("/", s.handleGetMovie)
				r.With(auth).Put("/", s.handleUpdateMovie)
				r.With(auth).Patch("/", s.handleUpdateMovie)
				r.With(auth).Delete("/", s.handleDeleteMovie)
				r.With(auth).Post("/toggle-watched", s.handleToggleWatched)
				r.With(auth).Post("/rate", s.handleRateMovie)
			})
		})

		r.Get("/search/tmdb", s.handleSearchTMDB)
		r.Get("/recommendations", s.handleRecommendations)

		r.Get("/export", s.handleExport)
		r.With(auth).Post("/import", s.handleImport)
		r.Post("/maintenance/fix-missing-posters", s.handleFixMissingPosters)
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
