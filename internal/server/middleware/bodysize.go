package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark/internal/util"
)

const defaultMaxBodySize = 100 * 1024 * 1024 // 100MB

// BodySizeLimit returns middleware that restricts the request body to the
// given size string (e.g. "100MB", "512KB", "1GB").
func BodySizeLimit(maxSize string) gin.HandlerFunc {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, size)
		c.Next()
	}
}
