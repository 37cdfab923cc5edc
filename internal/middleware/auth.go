package middleware

import (
	"net/http"
	"strings"
	"time"

	"collector/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

// Auth validates HMAC-signed access tokens.
type Auth struct {
	secret []byte
}

func NewAuth(secret []byte) *Auth {
	return &Auth{secret: secret}
}

// IssueToken signs an access token for a user. The subject is the user id.
func (a *Auth) IssueToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// tokenFrom reads the token from the access_token cookie, falling back to
// the Authorization header.
func tokenFrom(c *gin.Context) (string, string) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, ""
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

func (a *Auth) parse(c *gin.Context) (jwt.MapClaims, bool) {
	tokenString, problem := tokenFrom(c)
	if problem != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
		return nil, false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return nil, false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Token has no subject"))
		return nil, false
	}
	role, _ := claims["role"].(string)

	c.Set(UserIDKey, sub)
	c.Set(UserRoleKey, role)
	return claims, true
}

// RequireAuth accepts any valid token.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.parse(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireRole accepts a valid token whose role is one of allowedRoles.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.parse(c); !ok {
			return
		}
		role := c.GetString(UserRoleKey)
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// UserID returns the authenticated user id stored by the middleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
