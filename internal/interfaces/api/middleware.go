package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/vaais251/Smobile-market-place/internal/auth"
	"github.com/vaais251/Smobile-market-place/internal/metrics"
)

const contextUserIDKey = "user_id"

// Auth validates the bearer token and stores the caller's user id on the
// gin context.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.FromRequest(c.Request)
		if err != nil {
			if errors.Is(err, auth.ErrMissingAuthHeader) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			}
			c.Abort()
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// currentUserID reads the authenticated user id set by Auth.
func currentUserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

// RateLimit limits requests per client IP with a fixed redis-backed
// window. INCR and EXPIRE run in one pipeline to keep the counter and its
// expiry close to atomic.
func RateLimit(redisClient *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("redis client cannot be nil for RateLimit middleware")
	}
	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()

		pipe := redisClient.Pipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			logrus.WithError(err).Error("Rate limiter redis pipeline failed")
			c.Next()
			return
		}

		if incr.Val() > int64(maxRequests) {
			metrics.RateLimitHits.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger writes one structured log line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Server error")
		case c.Writer.Status() >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
