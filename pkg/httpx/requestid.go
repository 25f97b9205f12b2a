package httpx

import (
	"github.com/Gunvolt24/dispatch_bench/pkg/ctxmeta"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID - заголовок корреляции запросов к ops-серверу.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen - длиннее не пишем в логи.
const maxRequestIDLen = 64

// RequestIDMiddleware берёт X-Request-ID клиента или генерирует UUID,
// кладёт его в контекст и возвращает в ответе.
// Чужой id с управляющими символами или длиннее maxRequestIDLen заменяется новым.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := ctxmeta.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] == 0x7f {
			return false
		}
	}
	return true
}
