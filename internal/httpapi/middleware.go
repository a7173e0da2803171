package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/ratelimit"
)

// routeToOp maps a request path/method to the rate limiter operation name
// used by internal/ratelimit's per-operation overrides.
func routeToOp(path, method string) string {
	switch {
	case strings.Contains(path, "/recall"):
		return "recall"
	case strings.Contains(path, "/consolidate"):
		return "consolidate"
	case method == "POST" && strings.HasSuffix(path, "/memories"):
		return "retain"
	default:
		return "global"
	}
}

// RateLimitMiddleware rejects requests the limiter refuses, mirroring the
// teacher's Retry-After header convention.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		op := routeToOp(c.Request.URL.Path, c.Request.Method)
		result := limiter.Allow(op)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			TooManyRequestsError(c, fmt.Sprintf("rate limit exceeded for %s, retry after %ds", result.LimitType, retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

const (
	// DefaultBodyLimit caps ordinary request bodies (remember/recall payloads).
	DefaultBodyLimit = 1 * 1024 * 1024
)

// MaxBodySizeMiddleware rejects bodies larger than maxBytes.
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			PayloadTooLargeError(c, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func parseIntQuery(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	n := 0
	if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
		return def
	}
	return n
}
