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

const secret = "test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt(UserIDKey), "request_id": c.GetString(RequestIDKey)})
	})
	r.GET("/x", handlers...)
	return r
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(secret, 12, time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(secret, token)

	require.NoError(t, err)
	assert.Equal(t, 12, userID)
}

func TestParseTokenRejectsWrongSecretAndExpired(t *testing.T) {
	token, err := IssueToken(secret, 12, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueToken(secret, 12, -time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))
	token, err := IssueToken(secret, 5, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRateLimitPerUser(t *testing.T) {
	limiter := NewUserLimiter(0.001, 2)
	setUser := func(id int) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set(UserIDKey, id); c.Next() }
	}
	r1 := newRouter(setUser(1), RateLimit(limiter))
	r2 := newRouter(setUser(2), RateLimit(limiter))

	codes := func(r *gin.Engine, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			out = append(out, w.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes(r1, 3))
	assert.Equal(t, []int{200}, codes(r2, 1))
}

func TestRateLimitDisabled(t *testing.T) {
	assert.True(t, NewUserLimiter(0, 0).Allow(1))
	var nilLimiter *UserLimiter
	assert.True(t, nilLimiter.Allow(1))
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	r := newRouter(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-1", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}
