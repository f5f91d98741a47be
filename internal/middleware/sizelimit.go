package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

const DefaultMaxBodySize int64 = 1 << 20

// SizeLimit rejects bodies declared larger than max and caps reads of
// bodies with unknown length.
func SizeLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.Error{
					Code:    http.StatusRequestEntityTooLarge,
					Message: "request body too large",
				},
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
