package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/dto"
	"github.com/prperemyshlev/tasklane/internal/service"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits requests per key within a sliding window.
// Limiter errors fail open so a Redis outage does not lock users out.
func RateLimitMiddleware(
	limiter service.Limiter,
	limit int,
	window time.Duration,
	keyFunc func(*gin.Context) string,
	logger *zap.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), keyFunc(c), limit, window)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "rate limit exceeded, try again in " + strconv.Itoa(retryAfter) + "s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RouteKey scopes a rate limit to the route and the client IP
func RouteKey(c *gin.Context) string {
	return c.FullPath() + ":" + c.ClientIP()
}
