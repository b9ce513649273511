package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racer-platform/internal/session"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret, zerolog.Nop()), func(c *gin.Context) {
		v, ok := session.From(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		ctxViewer, _ := session.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": v.UserID, "email": v.Email, "ctx_user_id": ctxViewer.UserID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid := jwt.MapClaims{
		"sub":   float64(42),
		"email": "fan@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), valid), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": float64(42), "exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"missing sub", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"numeric sub", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), valid), http.StatusOK},
		{"string sub", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": "42", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusOK},
	}

	r := protectedRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":42`)
				assert.Contains(t, w.Body.String(), `"ctx_user_id":42`)
			} else {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
	assert.Contains(t, buf.String(), `:"info"`)

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Contains(t, buf.String(), `"status":503`)
	assert.Contains(t, buf.String(), `:"error"`)
}
