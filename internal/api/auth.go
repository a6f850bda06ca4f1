package api

import (
	"net/http"
	"strings"

	"github.com/enjaz/request-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// AuthMiddleware validates HMAC-signed JWT tokens and stores the caller as a
// models.Principal. Claims: user_id (or sub), name, role.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Authorization header required",
				Message: "Please provide a valid authorization token",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid authorization format",
				Message: "Authorization header must be in format 'Bearer <token>'",
			})
			c.Abort()
			return
		}

		if secret == "" {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Server not configured",
				Message: "JWT secret missing",
			})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token",
				Message: "The provided token is invalid or expired",
			})
			c.Abort()
			return
		}

		p := principalFromClaims(claims)
		if p.ID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token",
				Message: "Token carries no user id",
			})
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Set("user_id", p.ID)
		c.Set("role", string(p.Role))

		c.Next()
	}
}

func principalFromClaims(claims jwt.MapClaims) models.Principal {
	var p models.Principal
	if id, ok := claims["user_id"].(string); ok {
		p.ID = id
	} else if sub, err := claims.GetSubject(); err == nil {
		p.ID = sub
	}
	p.Name, _ = claims["name"].(string)
	role, _ := claims["role"].(string)
	switch models.Role(strings.ToLower(role)) {
	case models.RoleAdmin:
		p.Role = models.RoleAdmin
	case models.RoleEmployee:
		p.Role = models.RoleEmployee
	default:
		p.Role = models.RoleClient
	}
	return p
}

// GetPrincipal returns the caller stored by AuthMiddleware.
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// StaffMiddleware admits employees and admins.
func StaffMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.Role.IsStaff() {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Staff access required",
				Message: "Employee or admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware ensures the user has strict admin role for catalog writes
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || p.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Admin access required",
				Message: "Admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
