package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/marketplace/returns/internal/interfaces/http/dto"
)

// RateLimiter is a fixed-window counter per key. Windows expire with the
// cache entry, so idle keys cost nothing.
type RateLimiter struct {
	counts *gocache.Cache
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per key per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counts: gocache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// Allow counts a request for key and reports whether it fits the window
func (rl *RateLimiter) Allow(key string) (remaining int, ok bool) {
	// Add fails when the window already exists; the increment below counts either way
	_ = rl.counts.Add(key, 0, rl.window)
	n, err := rl.counts.IncrementInt(key, 1)
	if err != nil {
		// expired between Add and Increment; start a new window
		rl.counts.Set(key, 1, rl.window)
		n = 1
	}
	if n > rl.limit {
		return 0, false
	}
	return rl.limit - n, true
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitByKey limits requests per key returned by keyFunc
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		remaining, ok := limiter.Allow(keyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				c.GetString("request_id"),
			))
			return
		}
		c.Next()
	}
}

// VendorKey keys rate limits by the authenticated vendor, falling back to client IP
func VendorKey(c *gin.Context) string {
	if vendorID, ok := GetVendorID(c); ok {
		return "vendor:" + vendorID.String()
	}
	return "ip:" + c.ClientIP()
}
