package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

// Orders projects completed events into seller orders.
type Orders struct {
	sink OrderSink
	now  func() time.Time
}

// CreateFromEvent materializes the seller order for event. Only the caller
// holding the event's completion claim may call it.
func (o *Orders) CreateFromEvent(ctx context.Context, event *models.Event) (primitive.ObjectID, error) {
	if len(event.LineItems) == 0 {
		return primitive.NilObjectID, validationf("event %s has no line items", event.ID.Hex())
	}
	now := o.now()
	order := &models.Order{
		ID:          primitive.NewObjectID(),
		EventID:     event.ID,
		SellerID:    event.SellerID,
		BuyerID:     event.CreatorID,
		LineItems:   append([]models.LineItem(nil), event.LineItems...),
		TotalAmount: models.TargetFor(event.LineItems),
		Currency:    event.Currency,
		Status:      models.OrderPlaced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return o.sink.CreateOrder(ctx, order)
}

func (o *Orders) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return o.sink.GetOrder(ctx, id)
}

func (o *Orders) ForEvent(ctx context.Context, eventID primitive.ObjectID) (*models.Order, error) {
	return o.sink.OrderForEvent(ctx, eventID)
}
