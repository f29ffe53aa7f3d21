package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/config"
	"github.com/homelink/hub-go/internal/database"
	"github.com/homelink/hub-go/internal/handler"
	"github.com/homelink/hub-go/internal/jobs"
	"github.com/homelink/hub-go/internal/middleware"
	"github.com/homelink/hub-go/internal/redis"
	"github.com/homelink/hub-go/internal/repository"
	"github.com/homelink/hub-go/internal/service"
	"github.com/homelink/hub-go/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("HUB_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewPairingSessionRepository(db.DB)
	clientRepo := repository.NewClientRepository(db.DB)
	activityRepo := repository.NewActivityLogRepository(db.DB)
	adminSessionRepo := repository.NewAdminSessionRepository(db.DB)

	recorder := audit.NewRecorder(activityRepo)

	pairingService := service.NewPairingService(db, sessionRepo, clientRepo, recorder, cfg.PinTTL())
	clientService := service.NewClientService(clientRepo, activityRepo, recorder)
	adminService := service.NewAdminService(adminSessionRepo, recorder, cfg.AdminPasswordHash, cfg.AdminSessionSecret)

	hub := ws.NewHub(redisClient)
	hub.Start()
	defer hub.Stop()

	// Revoking a client tears down its live channel immediately.
	clientService.SetRevocationNotifier(hub)

	adminSessionMiddleware := middleware.NewAdminSessionMiddleware(adminService)
	pairingRateLimiter := middleware.NewPairingRateLimiter(redisClient.Client, cfg.PairingRatePerMin)

	pairingHandler := handler.NewPairingHandler(pairingService)
	clientsHandler := handler.NewClientsHandler(clientService)
	adminHandler := handler.NewAdminHandler(adminService, isProduction)
	realtimeHandler := handler.NewRealtimeHandler(hub, clientService, ws.AcceptingCaller{}, cfg.HeartbeatInterval())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/pairing", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(pairingRateLimiter.Handler)
		r.Get("/pin", pairingHandler.GetPin)
		r.Post("/complete", pairingHandler.Complete)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(adminSessionMiddleware.Handler)
		r.Mount("/", clientsHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Mount("/", adminHandler.Routes())
	})

	// The realtime channel outlives any request timeout.
	r.Get("/ws", realtimeHandler.ServeHTTP)

	sweepJob := jobs.NewSweepJob(sessionRepo, adminSessionRepo, cfg.SweepInterval())
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
