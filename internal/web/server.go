// Package web provides the HTTP server for the guarantor merge service.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/guarantor/internal/config"
	"github.com/JonMunkholm/guarantor/internal/core"
	"github.com/JonMunkholm/guarantor/internal/web/middleware"
	"github.com/JonMunkholm/guarantor/internal/web/pages"
)

// Server is the HTTP server for the merge service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server for service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	page := pages.Index(pages.IndexParams{
		OutputName:  s.service.OutputName(),
		MaxFileSize: s.service.MaxFileSize(),
		SyncEnabled: s.cfg.Sync.FeedURL != "",
	})
	s.router.Get("/", templ.Handler(page).ServeHTTP)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/merge", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.With(s.newRateLimiter(s.cfg.Rate.MergeLimit, time.Minute).middleware).
					Post("/", s.handleStartMerge)
			} else {
				r.Post("/", s.handleStartMerge)
			}

			// Streaming and blocking endpoints run without the request timeout.
			r.Get("/{runID}/progress", s.handleMergeProgress)
			r.Get("/{runID}/result", s.handleMergeResult)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
				r.Get("/{runID}/download", s.handleMergeDownload)
				r.Post("/{runID}/cancel", s.handleCancelMerge)
				r.Post("/{runID}/publish", s.handlePublishMerge)
			})
		})

		r.Route("/records", func(r chi.Router) {
			r.Post("/sync", s.handleSyncRecords)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
				r.Get("/", s.handleRecords)
				r.Get("/count", s.handleRecordCount)
				r.Delete("/", s.handleDeleteRecords)
			})
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// The upload page uses one inline script and inline styles.
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
