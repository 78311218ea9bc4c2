package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

const roleAdmin = "admin"

var statusByKind = map[services.Kind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindInvalidState: http.StatusConflict,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindForbidden:    http.StatusForbidden,
	services.KindUnavailable:  http.StatusServiceUnavailable,
}

// respondError writes err as {"error": ...} with the status of its kind.
func respondError(c *gin.Context, cfg *config.Config, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		if cfg.Logger != nil {
			cfg.Logger.Error("request failed", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": svcErr.Message, "kind": svcErr.Kind}
	if svcErr.Retryable() {
		body["retryable"] = true
	}
	c.JSON(statusByKind[svcErr.Kind], body)
}

// requester returns the authenticated user, if any.
func requester(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func mustRequester(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := requester(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
	}
	return id, ok
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == roleAdmin
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

func requestContext(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// canView applies event visibility: private events are visible to their
// creator, their seller and admins only.
func canView(c *gin.Context, e *models.Event) bool {
	if e.Visibility != models.VisibilityPrivate || isAdmin(c) {
		return true
	}
	uid, ok := requester(c)
	return ok && (uid == e.CreatorID || uid == e.SellerID)
}

func isOwner(c *gin.Context, e *models.Event) bool {
	uid, ok := requester(c)
	return isAdmin(c) || (ok && uid == e.CreatorID)
}

// loadEvent fetches the :id event and writes the error response itself.
func loadEvent(ctx context.Context, c *gin.Context, cfg *config.Config) (*models.Event, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	event, err := cfg.App.Events.Get(ctx, id)
	if err != nil {
		respondError(c, cfg, err)
		return nil, false
	}
	if !canView(c, event) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	return event, true
}

// loadOwnedEvent is loadEvent restricted to the creator and admins.
func loadOwnedEvent(ctx context.Context, c *gin.Context, cfg *config.Config) (*models.Event, bool) {
	event, ok := loadEvent(ctx, c, cfg)
	if !ok {
		return nil, false
	}
	if !isOwner(c, event) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return nil, false
	}
	return event, true
}

// discardImages deletes uploads the request could not attach. Failures are
// logged so orphaned assets can be found later.
func discardImages(ctx context.Context, c *gin.Context, cfg *config.Config, urls []string) {
	for _, url := range urls {
		if err := cfg.Images.Delete(ctx, url); err != nil && cfg.Logger != nil {
			cfg.Logger.Error("image cleanup failed", "path", c.FullPath(), "url", url, "err", err)
		}
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}

func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
