package httpx

import (
	"net/http"
	"time"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/gin-gonic/gin"
)

// DefaultQuietPaths - опрашиваются Prometheus и пробами каждые несколько секунд.
var DefaultQuietPaths = []string{"/metrics", "/ping"}

// RequestLogger - middleware для логирования запросов к ops-серверу.
// Пути из quiet не логируются; без quiet - DefaultQuietPaths.
// Ответы 5xx (например, /status без снимка счётчиков) пишутся как Warn.
func RequestLogger(log ports.Logger, quiet ...string) gin.HandlerFunc {
	if len(quiet) == 0 {
		quiet = DefaultQuietPaths
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if _, ok := skip[path]; ok {
			return
		}
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		rid, _ := ctxmeta.RequestIDFromContext(ctx)
		tr, _ := ctxmeta.TraceIDFromContext(ctx)
		sp, _ := ctxmeta.SpanIDFromContext(ctx)

		logf := log.Infof
		if c.Writer.Status() >= http.StatusInternalServerError {
			logf = log.Warnf
		}
		logf(ctx,
			"request id=%s trace=%s span=%s method=%s path=%s status=%d ip=%s duration=%s size=%d",
			rid, tr, sp,
			c.Request.Method,
			path,
			c.Writer.Status(),
			c.ClientIP(),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}
