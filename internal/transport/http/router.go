package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handler - ops-эндпоинты сессии: только чтение.
type Handler struct {
	stats   ports.StatsProvider
	log     ports.Logger
	timeout time.Duration
}

func NewHandler(stats ports.StatsProvider, log ports.Logger, timeout time.Duration) *Handler {
	return &Handler{stats: stats, log: log, timeout: timeout}
}

// NewRouter - gin-роутер ops-сервера.
// otelServiceName пустой - без otelgin.
func NewRouter(h *Handler, otelServiceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if otelServiceName != "" {
		r.Use(otelgin.Middleware(otelServiceName))
	}
	r.Use(httpx.RequestIDMiddleware())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/status", h.status)

	return r
}

func (h *Handler) status(c *gin.Context) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	done := make(chan struct{})
	var body any
	go func() {
		defer close(done)
		body = h.stats.Stats()
	}()

	select {
	case <-done:
		c.JSON(http.StatusOK, body)
	case <-ctx.Done():
		h.log.Warnf(ctx, "status: stats snapshot timed out: %v", ctx.Err())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
	}
}
