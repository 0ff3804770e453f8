package web

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("took", time.Since(start)),
		}
		switch {
		case status >= 500:
			slog.Error("[Web] Request", attrs...)
		case status >= 400:
			slog.Warn("[Web] Request", attrs...)
		default:
			slog.Debug("[Web] Request", attrs...)
		}
	}
}
