package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := gin.New()
	r.POST("/call/incoming", handlers...)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/call/incoming", nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got), rr.Body.String())
	return rr, got
}

func TestSuccess(t *testing.T) {
	rr, got := serve(t, func(c *gin.Context) {
		Success(c, "accepted", gin.H{"call_id": "20240101_100000.000000000"})
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	// JSON 数字会被解析为 float64
	assert.Equal(t, float64(200), got["code"])
	assert.Equal(t, "accepted", got["msg"])
	assert.Equal(t, map[string]any{"call_id": "20240101_100000.000000000"}, got["data"])
}

func TestAbortWithStatusJSON_StopsChain(t *testing.T) {
	rr, got := serve(t, func(c *gin.Context) {
		AbortWithStatusJSON(c, http.StatusForbidden, errors.New("nope"))
	}, func(c *gin.Context) {
		c.Header("X-After", "should-not-exist")
	})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("X-After"))
	assert.Equal(t, float64(403), got["code"])
	assert.Equal(t, "nope", got["msg"])
	assert.Equal(t, ErrorUnknown, got["error"])
	assert.Nil(t, got["data"])
}

func TestAbortWithStatusJSON_ErrorCodes(t *testing.T) {
	testCases := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, ErrorInvalidRequest},
		{http.StatusUnauthorized, ErrorUnauthorized},
		{http.StatusTooManyRequests, ErrorRateLimited},
		{http.StatusServiceUnavailable, ErrorUnavailable},
		{http.StatusInternalServerError, ErrorUnknown},
	}
	for _, tc := range testCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			rr, got := serve(t, func(c *gin.Context) {
				AbortWithStatusJSON(c, tc.status, errors.New("boom"))
			})
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.want, got["error"])
			assert.Equal(t, "boom", got["msg"])
		})
	}
}
