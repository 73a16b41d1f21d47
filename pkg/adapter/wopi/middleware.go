package wopi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
	wopiproto "github.com/marmos91/wopihost/internal/protocol/wopi"
	"github.com/marmos91/wopihost/internal/ratelimiter"
)

// requestLogger writes one line per request to the package logger. Server
// errors log at WARN so they surface at the default level; everything else
// logs at DEBUG. The query string is never logged because it carries the
// access token.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		override := c.GetHeader(wopiproto.HeaderOverride)
		if status >= http.StatusInternalServerError {
			logger.Warn("HTTP %s %s override=%q status=%d duration=%s client=%s",
				c.Request.Method, c.Request.URL.Path, override, status, time.Since(start), c.ClientIP())
			return
		}
		logger.Debug("HTTP %s %s override=%q status=%d duration=%s",
			c.Request.Method, c.Request.URL.Path, override, status, time.Since(start))
	}
}

// recovery turns a handler panic into a bare 500 and logs it.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// rateLimit answers 429 with Retry-After once a client address exhausts its
// bucket.
func rateLimit(l *ratelimiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, delay := l.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(delay.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		logger.Debug("Rate limited %s %s client=%s retry_after=%ds",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), retryAfter)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
}
