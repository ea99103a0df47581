package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl, err := NewRateLimiter("")
	require.NoError(t, err)
	assert.Equal(t, int64(60), rl.Rate().Limit)
	assert.Equal(t, time.Minute, rl.Rate().Period)

	_, err = NewRateLimiter("lots")
	assert.Error(t, err)
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, err := NewRateLimiter("2-M")
	require.NoError(t, err)

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.Header.Set("X-Forwarded-For", ip)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)
	w := send("203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusOK, send("203.0.113.2").Code)
}
