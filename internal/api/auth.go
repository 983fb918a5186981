package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// adminSubject is the fixed JWT subject: this system has exactly one
// operator, not per-user accounts, so there is nothing to look up by ID.
const adminSubject = "admin"

// adminClaims is the JWT claim set issued on a successful admin login.
type adminClaims struct {
	jwt.RegisteredClaims
}

func generateAdminToken(secret string, expiresAt time.Time) (string, error) {
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseAdminToken(tokenStr, secret string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if claims, ok := token.Claims.(*adminClaims); ok && token.Valid && claims.Subject == adminSubject {
		return nil
	}
	return errors.New("invalid token claims")
}

// AuthMiddleware enforces a valid admin JWT on the admin-only routes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "MISSING_TOKEN", "error": "missing Authorization header",
			})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "INVALID_AUTH_HEADER", "error": "invalid Authorization header",
			})
			return
		}
		if err := parseAdminToken(parts[1], secret); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "INVALID_TOKEN", "error": "invalid or expired token",
			})
			return
		}
		c.Next()
	}
}

// loginAdmin exchanges the configured admin password for a bearer JWT.
// A blank AdminPasswordHash (the operator never configured one) always
// rejects — there is no default admin credential.
func (s *Server) loginAdmin(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "invalid request payload"})
		return
	}

	if s.cfg.AdminPasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "ADMIN_DISABLED", "error": "no admin password configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_CREDENTIALS", "error": "invalid credentials"})
		return
	}

	expiresAt := time.Now().Add(12 * time.Hour)
	token, err := generateAdminToken(s.cfg.JWTSecret, expiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
