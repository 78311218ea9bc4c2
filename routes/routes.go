package routes

import (
	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	controllers "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/controllers"
	middleware "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	// public
	r.GET("/healthz", controllers.Healthz(cfg))
	r.POST("/payments/webhook", controllers.PaymentWebhook(cfg))

	auth := middleware.AuthMiddleware(cfg)
	optional := middleware.OptionalAuth(cfg)

	products := r.Group("/products")
	{
		products.GET("", controllers.ListProducts(cfg))
		products.POST("", auth, middleware.RequireRole("seller", "admin"), controllers.CreateProduct(cfg))
	}

	// Events
	events := r.Group("/events")
	{
		// guests browse public and unlisted events and pledge to them
		events.GET("", optional, controllers.ListEvents(cfg))
		events.GET("/:id", optional, controllers.GetEvent(cfg))
		events.GET("/:id/progress", optional, controllers.GetEventProgress(cfg))
		events.GET("/:id/contributions", optional, controllers.ListContributions(cfg))
		events.POST("/:id/contributions", optional, controllers.CreateContribution(cfg))

		events.POST("", auth, controllers.CreateEvent(cfg))
		events.PATCH("/:id", auth, controllers.UpdateEvent(cfg))
		events.POST("/:id/activate", auth, controllers.ActivateEvent(cfg))
		events.POST("/:id/cancel", auth, controllers.CancelEvent(cfg))
		events.POST("/:id/checkout", auth, controllers.CheckoutEvent(cfg))
		events.POST("/:id/images", auth, controllers.UploadEventImages(cfg))
		events.GET("/:id/order", auth, controllers.GetEventOrder(cfg))
	}

	contributions := r.Group("/contributions")
	contributions.Use(auth)
	{
		contributions.GET("/:ref", controllers.GetContribution(cfg))
	}

	notifs := r.Group("/notifications")
	notifs.Use(auth) // protected
	{
		notifs.GET("", controllers.ListNotifications(cfg))
		notifs.PATCH("/:id/read", controllers.MarkNotificationRead(cfg))
	}
}
