package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/phms-engine/internal/app"
	"github.com/jwalitptl/phms-engine/internal/config"
	"github.com/jwalitptl/phms-engine/internal/handler/device"
	"github.com/jwalitptl/phms-engine/internal/handler/health"
	"github.com/jwalitptl/phms-engine/internal/handler/prometheus"
	"github.com/jwalitptl/phms-engine/internal/handler/reminder"
	"github.com/jwalitptl/phms-engine/internal/handler/vitals"
	"github.com/jwalitptl/phms-engine/internal/middleware"
	"github.com/jwalitptl/phms-engine/internal/router"
	"github.com/jwalitptl/phms-engine/pkg/auth"
	"github.com/jwalitptl/phms-engine/pkg/validator"
)

func main() {
	// A missing .env is fine outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PHMS_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	log.Logger = logger.ZL

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start background workers")
	}

	v := validator.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, 0)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	r := router.NewRouter(
		authMiddleware,
		a.Metrics,
		router.Config{
			RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst: cfg.RateLimit.Burst,
		},
		[]router.Handler{
			health.NewHandler(a.HealthChecks()...),
			prometheus.New(a.Registry),
		},
		[]router.Handler{
			vitals.NewHandler(a.Vitals, a.Location),
			reminder.NewHandler(a.Scheduler, a.Alarms, a.Preferences, a.Appointments, a.Medications, v),
			device.NewHandler(a.Preferences, v),
		},
	)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No write timeout: the vitals stream is long lived.
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	log.Info().Msg("server exited properly")
}
