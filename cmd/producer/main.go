package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/loadgen"
	"github.com/Gunvolt24/dispatch_bench/pkg/logger"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Генератор нагрузки: публикует сообщения бенчмарка с заданной скоростью.
func main() {
	configPath := flag.String("config", "loadgen.yaml", "path to YAML load profile (optional, LOADGEN_* env overrides it)")
	flag.Parse()

	_ = godotenv.Load(".env.local")

	cfg, err := loadgen.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logg, cleanup, err := logger.NewZapLogger(cfg.IsProd, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cleanup() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	if cfg.MetricsAddr != "" {
		if cfg.IsProd {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           loadgen.NewRouter(logg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Warnf(ctx, "metrics server stopped: %v", err)
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	gen := loadgen.NewGenerator(loadgen.NewKafkaWriter(cfg), cfg, logg)
	if _, err := gen.Run(ctx); err != nil {
		logg.Errorf(ctx, "load generator failed: %v", err)
	}
	if err := gen.Close(); err != nil {
		logg.Warnf(context.Background(), "writer close: %v", err)
	}
}
