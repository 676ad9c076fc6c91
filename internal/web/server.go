// Package web provides the HTTP API for import sessions.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/txnimport/internal/attachment"
	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/parser"
	"github.com/JonMunkholm/txnimport/internal/web/middleware"
)

// Server is the HTTP server for import sessions.
type Server struct {
	manager  *core.Manager
	parsers  *parser.Registry
	receipts *attachment.Validator
	cfg      *config.Config

	router *chi.Mux
	server *http.Server

	limiter       *middleware.RateLimiter
	uploadLimiter *middleware.RateLimiter
	stopLimiters  context.CancelFunc
}

// NewServer creates a server over manager.
func NewServer(manager *core.Manager, parsers *parser.Registry, receipts *attachment.Validator, cfg *config.Config) *Server {
	s := &Server{
		manager:  manager,
		parsers:  parsers,
		receipts: receipts,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiters = cancel
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = middleware.NewRateLimiter(cfg.Rate.UploadLimit, time.Minute)
		go s.limiter.Run(ctx)
		go s.uploadLimiter.Run(ctx)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api/imports", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		// Event streams outlive the request timeout.
		r.Get("/{id}/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleCloseSession)

			r.Patch("/{id}/rows/{rowID}", s.handleEditRow)
			r.Delete("/{id}/rows/{rowID}", s.handleDeleteRow)
			r.Delete("/{id}/import-errors", s.handleClearImportErrors)
			r.Post("/{id}/submit", s.handleSubmit)

			r.Group(func(r chi.Router) {
				if s.uploadLimiter != nil {
					r.Use(s.uploadLimiter.Middleware)
				}
				r.Post("/{id}/file", s.handleUploadFile)
				r.Post("/{id}/rows/{rowID}/receipt", s.handleAttachReceipt)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and the rate limiter janitors.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopLimiters()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
