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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/phms-engine/internal/app"
	"github.com/jwalitptl/phms-engine/internal/config"
	"github.com/jwalitptl/phms-engine/internal/handler/health"
	"github.com/jwalitptl/phms-engine/internal/handler/prometheus"
	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// The worker runs the engine without the HTTP API: vitals generation and
// alerting, reminder timers, boot recovery, the periodic recheck and the user
// activity consumer.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PHMS_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := app.NewLogger(cfg.Log)
	log.Logger = l.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize worker")
	}

	srv := setupHealthCheck(cfg.Server.MetricsPort, a, l)

	if err := a.Start(ctx); err != nil {
		a.Close()
		log.Fatal().Err(err).Msg("Failed to start worker")
	}
	l.Info("Worker started", "metrics_port", cfg.Server.MetricsPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	l.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	a.Close()
}

func setupHealthCheck(port int, a *app.App, l *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	health.NewHandler(a.HealthChecks()...).RegisterRoutes(r)
	prometheus.New(a.Registry).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}
