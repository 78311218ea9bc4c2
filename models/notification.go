package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotifyTargetReached NotificationKind = "target_reached"
	NotifyCheckoutReady NotificationKind = "checkout_ready"
	NotifyCompleted     NotificationKind = "completed"
	NotifyCancelled     NotificationKind = "cancelled"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Kind      NotificationKind   `bson:"kind" json:"kind"`
	EventID   primitive.ObjectID `bson:"event_id" json:"event_id"`
	OrderID   primitive.ObjectID `bson:"order_id,omitempty" json:"order_id,omitempty"`
	Message   string             `bson:"message" json:"message"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// NotificationPayload carries what a notifier needs to render a lifecycle signal.
type NotificationPayload struct {
	EventID       primitive.ObjectID `json:"event_id"`
	Title         string             `json:"title"`
	CreatorID     primitive.ObjectID `json:"creator_id"`
	SellerID      primitive.ObjectID `json:"seller_id"`
	OrderID       primitive.ObjectID `json:"order_id,omitempty"`
	CurrentAmount int64              `json:"current_amount"`
	TargetAmount  int64              `json:"target_amount"`
	Currency      string             `json:"currency"`
	Reason        string             `json:"reason,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}
