package middlewares

import (
	"github.com/gin-gonic/gin"
	"log/slog"
	"multichat/pkg/logger"
	"time"
)

type Middlewares struct {
	log logger.Logger
}

func New(log logger.Logger) *Middlewares {
	return &Middlewares{log: log}
}

// Logging writes one debug record per request.
func (m *Middlewares) Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		m.log.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
