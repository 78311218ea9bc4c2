package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
)

func ListNotifications(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		items, err := cfg.Inbox.List(ctx, userID, c.Query("unread") == "true")
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func MarkNotificationRead(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		if err := cfg.Inbox.MarkRead(ctx, id, userID); err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
	}
}
