package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/middleware/requestid"
	"github.com/ecas/approval-api/pkg/observability"
	"github.com/ecas/approval-api/pkg/response"
)

// ErrorCapture reports panics and 5xx responses to Sentry. Panics are turned into a 500.
func ErrorCapture(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				logger.Error("panic recovered", zap.Error(err), zap.String("path", c.Request.URL.Path))
				observability.CaptureWithTags(err, tags(c))
				response.Error(c, appErrors.ErrInternal)
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		for _, ginErr := range c.Errors {
			observability.CaptureWithTags(ginErr.Err, tags(c))
		}
	}
}

func tags(c *gin.Context) map[string]string {
	return map[string]string{
		"method":     c.Request.Method,
		"route":      c.FullPath(),
		"request_id": requestid.Value(c),
	}
}
