package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/config"
	"science-registry/models"
	"science-registry/services"
)

func setupAuthRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, tokens *services.TokenService, log *zap.Logger) {
	rg := router.Group("/auth")

	rg.POST("/login", func(c *gin.Context) {
		var req struct {
			Login    string `json:"login" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
			return
		}
		login := strings.TrimSpace(req.Login)

		// Registered accounts win over the static fallback credentials.
		var user models.User
		err := db.Where("login = ?", login).First(&user).Error
		if err == nil {
			if !user.Active {
				c.JSON(http.StatusForbidden, gin.H{"error": "account is deactivated"})
				return
			}
			if user.PasswordHash != services.HashPassword(req.Password, cfg.PasswordSalt) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			role := services.RoleTeacher
			if user.Role != nil && *user.Role != "" {
				role = *user.Role
			}
			token, err := tokens.Mint(role, &user.ID)
			if err != nil {
				log.Error("Token mint failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"role": role, "token": token, "user_id": user.ID})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Login lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		switch {
		case login == cfg.AdminLogin && req.Password == cfg.AdminPassword:
			token, err := tokens.Mint(services.RoleAdmin, nil)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"role": services.RoleAdmin, "token": token})
		case login == cfg.UserLogin && req.Password == cfg.UserPassword:
			token, err := tokens.Mint(services.RoleUser, nil)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"role": services.RoleUser, "token": token})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		}
	})

	rg.GET("/me", requireUploader(tokens), func(c *gin.Context) {
		actor := currentActor(c)
		resp := gin.H{"role": actor.Role}
		if actor.UserID != nil {
			var user models.User
			if err := db.First(&user, *actor.UserID).Error; err == nil {
				resp["user_id"] = user.ID
				resp["login"] = user.Login
				resp["full_name"] = user.FullName
				resp["faculty"] = user.Faculty
				resp["department"] = user.Department
			}
		}
		c.JSON(http.StatusOK, resp)
	})
}
