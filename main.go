package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/baseball-sim/lineup-sim/roster"
	"github.com/baseball-sim/lineup-sim/simulation"
)

// pinger is satisfied by *pgxpool.Pool
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     *mux.Router
	httpServer *http.Server
	config     *Config
	engine     *simulation.Engine
	source     roster.Source
	defaults   roster.DefaultLineupSource
	db         pinger
	metrics    *Metrics
}

func NewServer(config *Config, engine *simulation.Engine, source roster.Source, db pinger, metrics *Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		config:  config,
		engine:  engine,
		source:  source,
		db:      db,
		metrics: metrics,
	}
	if config.Roster.CSVDir != "" {
		s.defaults = roster.DefaultLineupFile{Dir: config.Roster.CSVDir}
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.router.HandleFunc("/simulate/game", s.simulateGameHandler).Methods("POST")
	s.router.HandleFunc("/simulate/season", s.simulateSeasonHandler).Methods("POST")

	s.router.HandleFunc("/explore", s.exploreHandler).Methods("POST")
	s.router.HandleFunc("/explore/{id}/status", s.exploreStatusHandler).Methods("GET")
	s.router.HandleFunc("/explore/{id}/result", s.exploreResultHandler).Methods("GET")
	s.router.HandleFunc("/explore/{id}", s.cancelExploreHandler).Methods("DELETE")

	s.router.HandleFunc("/rosters/{team}/{season:[0-9]+}", s.rosterHandler).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Handler wraps the router with CORS, compression and panic recovery
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
	)(c.Handler(handlers.CompressHandler(s.router)))
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("port", s.config.Port).Int("workers", s.config.Workers).
		Msg("starting lineup simulator")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down lineup simulator")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveRequest(route, r.Method, lrw.statusCode, duration)

		log.Info().Str("method", r.Method).Str("uri", r.RequestURI).
			Int("status", lrw.statusCode).Dur("duration", duration).Msg("request")
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}

// newSource builds the configured roster source behind a cache. The returned
// pool is nil unless rosters come from Postgres.
func newSource(ctx context.Context, cfg *Config, metrics *Metrics) (*roster.CachedSource, pinger, func(), error) {
	switch cfg.Roster.Source {
	case SourcePostgres:
		pool, err := roster.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, nil, nil, err
		}
		source := roster.NewCachedSource(roster.NewPostgresSource(pool), cfg.Cache.TTL, metrics)
		return source, pool, pool.Close, nil
	default:
		source := roster.NewCachedSource(roster.CSVSource{Dir: cfg.Roster.CSVDir}, cfg.Cache.TTL, metrics)
		return source, nil, func() {}, nil
	}
}

func main() {
	configDir := flag.String("config", ".", "directory containing lineup-sim.yaml")
	flag.Parse()

	config, err := LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	setupLogging(config.LogLevel, config.LogFormat)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics := NewMetrics()

	source, db, closeSource, err := newSource(ctx, config, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create roster source")
	}
	defer closeSource()

	engine := simulation.NewEngine(simulation.EngineConfig{
		Workers:     config.Workers,
		SeasonGames: config.SeasonGames,
		Rules:       config.Rules,
		Seed:        config.Seed,
		RunTTL:      config.RunTTL,
		Observer:    metrics,
	})
	engine.StartPerformanceMonitoring(ctx, 5*time.Minute)

	server := NewServer(config, engine, source, db, metrics)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
		log.Info().Msg("server shutdown complete")
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
