package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiter implements rate limiting middleware
func RateLimiter(requestsPerSecond float64, burstSize int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			logrus.WithFields(logrus.Fields{
				"client_ip":  c.ClientIP(),
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
			}).Warn("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, newErrorResponse(c,
				"Rate limit exceeded",
				fmt.Sprintf("Too many requests. Limit: %.1f requests per second", requestsPerSecond),
			))
			return
		}
		c.Next()
	}
}

// MaxInstances bounds the number of requests handled at the same time.
// Requests beyond the bound wait for a free slot until their context ends.
func MaxInstances(n int) gin.HandlerFunc {
	if n < 1 {
		n = 1
	}
	sem := semaphore.NewWeighted(int64(n))

	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			logrus.WithFields(logrus.Fields{
				"path":          c.Request.URL.Path,
				"request_id":    c.GetString(RequestIDKey),
				"max_instances": n,
			}).Warn("Request abandoned while waiting for a free instance")

			c.AbortWithStatusJSON(http.StatusServiceUnavailable, newErrorResponse(c,
				"Service unavailable",
				"No instance became available before the request ended",
			))
			return
		}
		defer sem.Release(1)

		c.Next()
	}
}
