package controllers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	payments "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/payments"
)

// PaymentWebhook accepts provider callbacks. Providers retry on any non-2xx,
// so a 503 here means "deliver again later".
func PaymentWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.WebhookSecret == "" || cfg.Payments == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhook is not configured"})
			return
		}
		secret := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.WebhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}

		var signal payments.Signal
		if err := c.ShouldBindJSON(&signal); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := requestContext(c, 15*time.Second)
		defer cancel()

		result, err := cfg.Payments.Handle(ctx, signal)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
