package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		fields := []zap.Field{
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.String("route", context.FullPath()),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		}
		if len(context.Errors) > 0 {
			fields = append(fields, zap.String("errors", context.Errors.String()))
		}
		logger.Info("http", fields...)
	}
}

// Health reports liveness.
func Health(context *gin.Context) {
	context.JSON(200, gin.H{"status": "ok"})
}
