package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
)

func Healthz(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.MongoClient != nil {
			ctx, cancel := requestContext(c, 2*time.Second)
			defer cancel()
			if err := cfg.MongoClient.Ping(ctx, nil); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
