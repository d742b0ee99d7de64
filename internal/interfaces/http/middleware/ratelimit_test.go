package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to limit per key", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		remaining, ok := limiter.Allow("clientA")
		assert.True(t, ok)
		assert.Equal(t, 1, remaining)
		_, ok = limiter.Allow("clientA")
		assert.True(t, ok)
		_, ok = limiter.Allow("clientA")
		assert.False(t, ok)

		_, ok = limiter.Allow("clientB")
		assert.True(t, ok)
	})

	t.Run("resets after window", func(t *testing.T) {
		limiter := NewRateLimiter(1, 50*time.Millisecond)

		_, ok := limiter.Allow("client3")
		assert.True(t, ok)
		_, ok = limiter.Allow("client3")
		assert.False(t, ok)

		time.Sleep(80 * time.Millisecond)

		_, ok = limiter.Allow("client3")
		assert.True(t, ok)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RateLimit(NewRateLimiter(2, time.Minute)))
	router.POST("/webhooks/courier", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/courier", nil)
		req.RemoteAddr = "10.1.2.3:4567"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := call()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, call().Code)

	w = call()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimitByKey_Vendor(t *testing.T) {
	router := gin.New()
	router.Use(ActorAuth(ActorAuthConfig{AllowHeader: true}), RateLimitByKey(NewRateLimiter(1, time.Minute), VendorKey))
	router.GET("/returns", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(vendorID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/returns", nil)
		req.Header.Set(VendorIDHeader, vendorID.String())
		req.Header.Set(ActorIDHeader, "u1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	v1, v2 := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, call(v1))
	assert.Equal(t, http.StatusTooManyRequests, call(v1))
	assert.Equal(t, http.StatusOK, call(v2))
}
