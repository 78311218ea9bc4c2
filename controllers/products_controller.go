package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

// ---------------- CREATE ----------------
func CreateProduct(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}

		// --- Bind form fields ---
		var input struct {
			Name        string `form:"name" json:"name" binding:"required"`
			Description string `form:"description" json:"description"`
			Price       int64  `form:"price" json:"price" binding:"required"`
			Stock       int64  `form:"stock" json:"stock"`
			SellerID    string `form:"seller_id" json:"seller_id"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sellerID := userID
		if input.SellerID != "" && isAdmin(c) {
			id, err := primitive.ObjectIDFromHex(input.SellerID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seller_id"})
				return
			}
			sellerID = id
		}

		ctx, cancel := requestContext(c, time.Minute)
		defer cancel()

		// --- Handle file uploads ---
		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}

		var imageURLs []string
		if form != nil && cfg.Images != nil {
			for _, fileHeader := range form.File["images"] {
				file, err := fileHeader.Open()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
					return
				}

				url, err := cfg.Images.Upload(ctx, file, fileHeader.Filename)
				file.Close()
				if err != nil {
					c.JSON(http.StatusBadGateway, gin.H{
						"error":   "image upload failed",
						"details": err.Error(),
						"file":    fileHeader.Filename,
					})
					return
				}
				imageURLs = append(imageURLs, url)
			}
		}

		product, err := cfg.App.Products.Create(ctx, services.ProductInput{
			SellerID:    sellerID,
			Name:        input.Name,
			Description: input.Description,
			Price:       input.Price,
			Stock:       input.Stock,
			Images:      imageURLs,
		})
		if err != nil {
			discardImages(ctx, c, cfg, imageURLs)
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// ---------------- LIST ----------------
func ListProducts(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sellerID *primitive.ObjectID
		if raw := c.Query("seller_id"); raw != "" {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seller_id"})
				return
			}
			sellerID = &id
		}

		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		products, err := cfg.App.Products.List(ctx, sellerID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}
