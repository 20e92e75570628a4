package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/crowdframe/internal/logger"
)

// Recovery turns a handler panic into a JSON 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("server: panic on %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, err, debug.Stack())
				c.JSON(http.StatusInternalServerError, gin.H{"code": -1, "message": "internal server error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Logging logs one line per request
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		logger.Info("[%s] %s %s | status: %d | latency: %v",
			c.ClientIP(), c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
