// Package server wires the HTTP router, middleware and handlers together and
// runs the listener.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → logger → storage uploader → server.New
//	server.New: gormdb.New → services → handlers → routes
//
// This is the composition root: every dependency is built here and passed
// down, never looked up from a global.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/config"
	"github.com/sakif/product-registry/internal/handler"
	"github.com/sakif/product-registry/internal/middleware"
	"github.com/sakif/product-registry/internal/repository/gormdb"
	"github.com/sakif/product-registry/internal/service"
	"github.com/sakif/product-registry/internal/storage"
)

// APIPrefix is where every JSON route is mounted.
const APIPrefix = "/api/v1"

// Server owns the router and the database pool. The pool is closed when
// Start returns.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *gormdb.DB
	registry *prometheus.Registry
}

// New opens the database described by cfg and builds the server around it.
// uploader may be nil, in which case /upload/img answers 503.
func New(cfg *config.Config, logger *slog.Logger, uploader storage.Uploader) (*Server, error) {
	db, err := gormdb.New(cfg.DatabaseURL, gormdb.WithDebug(cfg.DBDebug))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := newServer(cfg, logger, db, uploader)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, logger *slog.Logger, db *gormdb.DB, uploader storage.Uploader) (*Server, error) {
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	if err := s.setupRoutes(uploader); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes installs the middleware stack and mounts every handler.
//
//	GET  /metrics                    → Prometheus exposition
//	GET  /api/v1/healthcheck/        → liveness
//	GET  /api/v1/readyz              → readiness (database ping)
//	*    /api/v1/products/...        → ProductHandler
//	*    /api/v1/users/...           → UserHandler
//	POST /api/v1/upload/img          → UploadHandler
//
// Middleware order: RequestID, RealIP, Recoverer, then metrics and the
// request logger, which both read the matched route after the handler runs.
func (s *Server) setupRoutes(uploader storage.Uploader) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.AccessTokenTTL, s.config.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(metrics.Handler)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)
	productService := service.NewProductService(s.db.Products(), s.logger)

	userHandler := handler.NewUserHandler(authService, s.logger)
	productHandler := handler.NewProductHandler(productService, s.logger)
	uploadHandler := handler.NewUploadHandler(uploader, s.config.UploadMaxBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.db)

	s.router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/healthcheck/", healthHandler.HandleHealth)
		r.Get("/readyz", healthHandler.HandleReady)
		r.Mount("/products", productHandler.Routes())
		r.Mount("/users", userHandler.Routes(auth.RequireAuth(tokens)))
		r.Post("/upload/img", uploadHandler.HandleUploadImage)
	})

	return nil
}

// Start runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d%s", s.config.Port, APIPrefix)),
			slog.Bool("postgres", s.config.IsPostgres()),
			slog.Bool("storage", s.config.StorageEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
