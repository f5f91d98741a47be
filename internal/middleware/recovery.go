package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
	"github.com/jwalitptl/agenda-api/pkg/logger"
)

// Recovery turns panics into a generic 500 and logs the stack.
func Recovery(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				l.Error(err, "request panic recovered",
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ContextRequestID))
				httputil.RespondWithError(c, errors.Internal(err))
			}
		}()
		c.Next()
	}
}
