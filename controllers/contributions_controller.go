package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

// ---------------- CREATE ----------------
func CreateContribution(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		event, ok := loadEvent(ctx, c, cfg)
		if !ok {
			return
		}

		var input struct {
			ContributorName    string `json:"contributor_name"`
			ContributorContact string `json:"contributor_contact"`
			Message            string `json:"message"`
			Amount             int64  `json:"amount" binding:"required"`
			Currency           string `json:"currency"`
			Method             string `json:"method"`
			PaymentRef         string `json:"payment_reference" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		record := services.RecordInput{
			EventID:            event.ID,
			ContributorName:    input.ContributorName,
			ContributorContact: input.ContributorContact,
			Message:            input.Message,
			Amount:             input.Amount,
			Currency:           input.Currency,
			Method:             input.Method,
			PaymentRef:         input.PaymentRef,
		}
		// Guests may pledge; signed-in contributors are linked.
		if uid, ok := requester(c); ok {
			record.ContributorID = &uid
		}

		contribution, err := cfg.App.Ledger.Record(ctx, record)
		if err != nil {
			respondError(c, cfg, err)
			return
		}
		c.JSON(http.StatusCreated, contribution)
	}
}

// ---------------- LIST ----------------
func ListContributions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 10*time.Second)
		defer cancel()

		event, ok := loadEvent(ctx, c, cfg)
		if !ok {
			return
		}

		contributions, err := cfg.App.Ledger.List(ctx, event.ID)
		if err != nil {
			respondError(c, cfg, err)
			return
		}

		// Contact details are for the event owner only.
		if !isOwner(c, event) {
			for i := range contributions {
				contributions[i].ContributorContact = ""
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"event_id":       event.ID,
			"current_amount": event.CurrentAmount,
			"target_amount":  event.TargetAmount,
			"contributions":  contributions,
		})
	}
}

// ---------------- GET ----------------
func GetContribution(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustRequester(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		contribution, err := cfg.App.Ledger.Get(ctx, c.Param("ref"))
		if err != nil {
			respondError(c, cfg, err)
			return
		}

		if !isAdmin(c) && !contributedBy(contribution, userID) {
			event, err := cfg.App.Events.Get(ctx, contribution.EventID)
			if err != nil {
				respondError(c, cfg, err)
				return
			}
			if event.CreatorID != userID {
				c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
				return
			}
		}

		c.JSON(http.StatusOK, contribution)
	}
}

func contributedBy(c *models.Contribution, userID primitive.ObjectID) bool {
	return !c.Anonymous() && *c.ContributorID == userID
}
