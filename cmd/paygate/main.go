package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	paygate "github.com/x402lab/paygate"
	"github.com/x402lab/paygate/config"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/metrics"
	"github.com/x402lab/paygate/server"
)

func main() {
	// Missing .env is fine in deployments where variables come from
	// the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zl := logger.NewZapLogger(cfg.LogLevel)

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		rec = metrics.NewPrometheusRecorder()
	}

	gw, err := paygate.New(cfg, paygate.WithLogger(zl), paygate.WithMetrics(rec))
	if err != nil {
		log.Fatalf("failed to initialize gateway: %v", err)
	}
	defer gw.Close()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewRouter(gw),
	}

	go func() {
		zl.Info("gateway listening", map[string]any{
			"addr":           cfg.ListenAddr,
			"network":        cfg.Network,
			"requirePayment": cfg.RequirePayment,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("shutdown error", map[string]any{"error": err.Error()})
	}
}
