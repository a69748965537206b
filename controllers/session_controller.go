package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fenix-advisor/backend/middlewares"
	"fenix-advisor/backend/session"
	"fenix-advisor/backend/utils"
)

func CreateSession(store *session.Store, secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := store.Create()
		token, err := utils.GenerateJWT(secret, s.ID, ttl)
		if err != nil {
			store.Delete(s.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"token":      token,
			"session_id": s.ID,
			"expires_in": int(ttl.Seconds()),
		})
	}
}

func GetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middlewares.CurrentSession(c)
		source := ""
		if src := s.Source(); src != nil {
			source = src.Key()
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": s.ID,
			"created_at": s.CreatedAt,
			"source":     source,
			"questions":  len(s.History()),
		})
	}
}

func DeleteSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.Delete(middlewares.CurrentSession(c).ID)
		c.Status(http.StatusNoContent)
	}
}

// History lists the session's recent questions, oldest first.
func History() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"history": middlewares.CurrentSession(c).History()})
	}
}
