package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"racer-platform/internal/session"
)

// AuthMiddleware verifies the bearer token and puts the session.Viewer on the
// request. Tokens are issued elsewhere; only HS256 signatures are accepted.
func AuthMiddleware(jwtSecret string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get Authorization Header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Str("path", c.FullPath()).Msg("no auth header found")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("auth header format is not Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			logger.Debug().Err(err).Msg("token parsing error")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID, ok := subject(claims)
		if !ok {
			logger.Debug().Msg("invalid 'sub' claim in token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		email, _ := claims["email"].(string)

		session.Set(c, session.Viewer{UserID: userID, Email: email})
		c.Next()
	}
}

// subject accepts both numeric and string "sub" claims.
func subject(claims jwt.MapClaims) (int64, bool) {
	switch sub := claims["sub"].(type) {
	case float64:
		if sub > 0 && sub == float64(int64(sub)) {
			return int64(sub), true
		}
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
