package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/resilkit/resilience"
)

// RateLimit rejects requests with 429 once rl runs out of tokens.
func RateLimit(rl *resilience.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := rl.Execute(c.Request.Context(), func(context.Context) error {
			c.Next()
			return nil
		})
		if err != nil {
			abortWithError(c, err)
		}
	}
}

// Bulkhead caps the requests served at once by pool. Requests that cannot get
// a slot within the pool's MaxWait receive 503.
func Bulkhead(pool *resilience.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := pool.Execute(c.Request.Context(), func(context.Context) error {
			c.Next()
			return nil
		})
		if err != nil {
			abortWithError(c, err)
		}
	}
}
