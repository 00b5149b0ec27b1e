package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// AuthMiddleware guards the versioned API routes with JWT bearer
// tokens. Health and readiness probes stay open.
type AuthMiddleware struct {
	jwtSecret []byte
	logger    *logger.Logger
}

// Claims are the JWT claims blockfeed accepts.
type Claims struct {
	Subject string `json:"sub,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware creates an authentication middleware around the
// given HMAC secret.
func NewAuthMiddleware(jwtSecret string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		logger:    log,
	}
}

// Authenticate returns the gin middleware enforcing a valid bearer
// token on every request it wraps.
func (a *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if a.validateJWT(c, token) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
		c.Abort()
	}
}

func (a *AuthMiddleware) validateJWT(c *gin.Context, tokenString string) bool {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		a.logger.Debug("JWT validation failed", zap.Error(err))
		return false
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		c.Set("subject", claims.Subject)
		return true
	}

	return false
}
