package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns handler panics into 500 responses. A panic caused by the
// client hanging up is logged without writing a response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			fields := []zap.Field{
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			}

			if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
				log.Warn("Client connection lost", fields...)
				c.Abort()
				return
			}

			log.Error("Panic recovered", append(fields, zap.Stack("stack"))...)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}()
		c.Next()
	}
}
