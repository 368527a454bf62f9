package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"science-registry/services"
)

const actorKey = "actor"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Client-Id, X-User-Id")
		c.Header("Access-Control-Expose-Headers", "X-Total-Count, Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func tokenFromHeader(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if h == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// requireUploader accepts any valid token and attaches the caller
// identity. The client id header is generated when missing so anonymous
// browser sessions still own their uploads.
func requireUploader(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(tokenFromHeader(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		clientID := strings.TrimSpace(c.GetHeader("X-Client-Id"))
		if clientID == "" {
			clientID = "auto-" + uuid.NewString()
		}

		actor := services.Actor{Role: claims.Role, ClientID: clientID, UserID: claims.UserID}
		if actor.UserID == nil {
			if raw := strings.TrimSpace(c.GetHeader("X-User-Id")); raw != "" {
				if id, err := strconv.Atoi(raw); err == nil && id > 0 {
					uid := uint(id)
					actor.UserID = &uid
				}
			}
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireAdmin accepts only admin tokens.
func requireAdmin(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(tokenFromHeader(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		if claims.Role != services.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		clientID := strings.TrimSpace(c.GetHeader("X-Client-Id"))
		if clientID == "" {
			clientID = "auto-" + uuid.NewString()
		}
		c.Set(actorKey, services.Actor{Role: claims.Role, ClientID: clientID, UserID: claims.UserID})
		c.Next()
	}
}

func currentActor(c *gin.Context) services.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(services.Actor); ok {
			return a
		}
	}
	return services.Actor{}
}
