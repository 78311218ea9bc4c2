package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
)

// GetEventOrder returns the order a completed event produced. Visible to the
// creator, the seller and admins.
func GetEventOrder(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		event, ok := loadEvent(ctx, c, cfg)
		if !ok {
			return
		}
		if !isAdmin(c) && userID != event.CreatorID && userID != event.SellerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		order, err := cfg.App.Orders.ForEvent(ctx, event.ID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
