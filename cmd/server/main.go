package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/approvals/configuration"
	"github.com/liamcoop/approvals/internal/config"
	"github.com/liamcoop/approvals/internal/logger"

	_ "github.com/lib/pq"
)

type Server struct {
	db             *sql.DB // nil when running on the in-memory store
	manager        *configuration.Manager
	registry       *prometheus.Registry
	router         *chi.Mux
	requestTimeout time.Duration
}

// NewServer wires the store selected by cfg. PostgreSQL is used when a
// database url is configured, an in-memory store otherwise.
func NewServer(cfg *config.Config) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []configuration.Option{
		configuration.WithMetrics(configuration.NewMetrics(cfg.Metrics.Namespace, registry)),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, configuration.WithCache(configuration.NewInMemoryCandidateCache(configuration.CacheConfig{TTL: cfg.Cache.TTL})))
	}

	var (
		db           *sql.DB
		store        configuration.Store
		requestTypes configuration.RequestTypeChecker
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = configuration.NewPostgresStore(db)
		requestTypes = configuration.NewPostgresRequestTypes(db)
	} else {
		logger.Warn("no database configured, configurations are kept in memory")
		store = configuration.NewInMemoryStore()
	}

	manager, err := configuration.NewManager(store, requestTypes, opts...)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	return NewServerWithManager(manager, registry, db, cfg.Server.RequestTimeout), nil
}

// NewServerWithManager builds the HTTP surface over an existing manager
func NewServerWithManager(manager *configuration.Manager, registry *prometheus.Registry, db *sql.DB, requestTimeout time.Duration) *Server {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	s := &Server{
		db:             db,
		manager:        manager,
		registry:       registry,
		requestTimeout: requestTimeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	// Health check and metrics
	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Stateless rule tooling
	r.Post("/api/v1/rules/evaluate", s.handleEvaluateRules)
	r.Post("/api/v1/rules/validate", s.handleValidateRules)

	r.Route("/api/v1/tenants/{tenantId}/configurations", func(r chi.Router) {
		r.Get("/", s.handleListConfigurations)
		r.Post("/", s.handleCreateConfiguration)
		r.Post("/select", s.handleSelectConfiguration)
		r.Post("/compatible", s.handleListCompatible)

		r.Route("/{configurationId}", func(r chi.Router) {
			r.Get("/", s.handleGetConfiguration)
			r.Put("/", s.handleUpdateConfiguration)
			r.Delete("/", s.handleDeleteConfiguration)

			// Lifecycle
			r.Post("/activate", s.handleTransition(s.manager.Activate))
			r.Post("/deactivate", s.handleTransition(s.manager.Deactivate))
			r.Post("/publish", s.handleTransition(s.manager.Publish))
			r.Post("/archive", s.handleTransition(s.manager.Archive))
			r.Post("/clone", s.handleCopy(s.manager.Clone))
			r.Post("/versions", s.handleCopy(s.manager.CreateNewVersion))

			// Evaluation
			r.Post("/evaluate", s.handleEvaluateConfiguration)
			r.Post("/start-conditions/check", s.handleCheckConditions(s.manager.CheckStartConditions))
			r.Post("/completion-conditions/check", s.handleCheckConditions(s.manager.CheckCompletionConditions))
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	if err := logger.Setup(context.Background(), logger.Options{
		Level:           cfg.Log.Level,
		ErrorSampleRate: cfg.Log.ErrorSampleRate,
		OTelEnabled:     cfg.OTel.Enabled,
		ServiceName:     cfg.OTel.ServiceName,
	}); err != nil {
		logger.Error("failed to set up OpenTelemetry logging, using stdout", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
