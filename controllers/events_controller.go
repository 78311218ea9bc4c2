package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	utils "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/utils"
)

// ---------------- CREATE ----------------
func CreateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}

		var input struct {
			Title       string                   `json:"title" binding:"required"`
			Description string                   `json:"description"`
			Category    models.Category          `json:"category"`
			Visibility  models.Visibility        `json:"visibility"`
			Currency    string                   `json:"currency"`
			LineItems   []services.LineItemInput `json:"line_items"`
			StartDate   string                   `json:"start_date" binding:"required"`
			EndDate     string                   `json:"end_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start, err := parseDate(input.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date format, use RFC3339 or YYYY-MM-DD"})
			return
		}
		end, err := parseDate(input.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, use RFC3339 or YYYY-MM-DD"})
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		event, err := cfg.App.Events.Create(ctx, services.CreateEventInput{
			CreatorID:   userID,
			Title:       input.Title,
			Description: input.Description,
			Category:    input.Category,
			LineItems:   input.LineItems,
			Window:      models.Window{StartDate: start, EndDate: end},
			Visibility:  input.Visibility,
			Currency:    input.Currency,
		})
		if err != nil {
			respondError(c, cfg, err)
			return
		}

		c.Header("ETag", utils.GenerateETag(event.ID, event.Version))
		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- LIST ----------------
func ListEvents(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := services.EventFilter{
			Status:     models.EventStatus(c.Query("status")),
			Visibility: models.Visibility(c.Query("visibility")),
			Category:   models.Category(c.Query("category")),
			Query:      c.Query("q"),
		}
		if limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64); err == nil && limit > 0 {
			filter.Limit = min(limit, 200)
		}

		// --- Scope: own events, or public ones ---
		if c.Query("mine") == "true" {
			userID, ok := mustRequester(c)
			if !ok {
				return
			}
			filter.CreatorID = &userID
		} else if !isAdmin(c) {
			filter.Visibility = models.VisibilityPublic
		}

		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		events, err := cfg.App.Events.List(ctx, filter)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		if len(events) == 0 {
			c.JSON(http.StatusOK, []models.Event{})
			return
		}

		// --- ETag from the most recently updated event ---
		latest := events[0]
		for _, ev := range events {
			if ev.UpdatedAt.After(latest.UpdatedAt) {
				latest = ev
			}
		}
		etag := utils.GenerateETag(latest.ID, latest.Version+int64(len(events)))
		if match := c.GetHeader("If-None-Match"); match != "" && utils.MatchETag(match, etag) {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, events)
	}
}

// ---------------- GET ----------------
func GetEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		event, ok := loadEvent(ctx, c, cfg)
		if !ok {
			return
		}

		etag := utils.GenerateETag(event.ID, event.Version)
		if match := c.GetHeader("If-None-Match"); match != "" && utils.MatchETag(match, etag) {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, event)
	}
}

// ---------------- PROGRESS ----------------
func GetEventProgress(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		event, ok := loadEvent(ctx, c, cfg)
		if !ok {
			return
		}
		progress, err := cfg.App.Events.Progress(ctx, event.ID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		existing, ok := loadOwnedEvent(ctx, c, cfg)
		if !ok {
			return
		}

		var input struct {
			Title       *string                  `json:"title"`
			Description *string                  `json:"description"`
			Category    *models.Category         `json:"category"`
			Visibility  *models.Visibility       `json:"visibility"`
			LineItems   []services.LineItemInput `json:"line_items"`
			StartDate   *string                  `json:"start_date"`
			EndDate     *string                  `json:"end_date"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		changes := services.EventChanges{
			Title:       input.Title,
			Description: input.Description,
			Category:    input.Category,
			Visibility:  input.Visibility,
			LineItems:   input.LineItems,
		}

		// --- Optimistic concurrency via If-Match ---
		if match := c.GetHeader("If-Match"); match != "" {
			if !utils.MatchETag(match, utils.GenerateETag(existing.ID, existing.Version)) {
				c.JSON(http.StatusPreconditionFailed, gin.H{"error": "event was modified, reload and retry"})
				return
			}
			changes.ExpectedVersion = existing.Version
		}

		if input.StartDate != nil {
			start, err := parseDate(*input.StartDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date format, use RFC3339 or YYYY-MM-DD"})
				return
			}
			changes.StartDate = &start
		}
		if input.EndDate != nil {
			end, err := parseDate(*input.EndDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, use RFC3339 or YYYY-MM-DD"})
				return
			}
			changes.EndDate = &end
		}

		event, err := cfg.App.Events.Edit(ctx, existing.ID, changes)
		if err != nil {
			respondError(c, cfg, err)
			return
		}

		c.Header("ETag", utils.GenerateETag(event.ID, event.Version))
		c.JSON(http.StatusOK, event)
	}
}

// ---------------- TRANSITIONS ----------------
func ActivateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 15*time.Second)
		defer cancel()

		existing, ok := loadOwnedEvent(ctx, c, cfg)
		if !ok {
			return
		}
		event, err := cfg.App.Lifecycle.Activate(ctx, existing.ID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func CancelEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		existing, ok := loadOwnedEvent(ctx, c, cfg)
		if !ok {
			return
		}

		var input struct {
			Reason string `json:"reason"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		event, err := cfg.App.Lifecycle.Cancel(ctx, existing.ID, input.Reason)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func CheckoutEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 15*time.Second)
		defer cancel()

		existing, ok := loadOwnedEvent(ctx, c, cfg)
		if !ok {
			return
		}
		event, err := cfg.App.Lifecycle.Checkout(ctx, existing.ID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// ---------------- IMAGES ----------------
func UploadEventImages(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Images == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image uploads are not configured"})
			return
		}

		ctx, cancel := requestContext(c, 2*time.Minute)
		defer cancel()

		existing, ok := loadOwnedEvent(ctx, c, cfg)
		if !ok {
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		files := form.File["images"] // key must be "images"
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no images provided"})
			return
		}

		var imageURLs []string
		for _, fileHeader := range files {
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

		event, err := cfg.App.Events.AddImages(ctx, existing.ID, imageURLs)
		if err != nil {
			// Keep storage in step with the event.
			discardImages(ctx, c, cfg, imageURLs)
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}
