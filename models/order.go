package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const OrderPlaced OrderStatus = "placed"

// Order is the seller order materialized from a completed event.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     primitive.ObjectID `bson:"event_id" json:"event_id"`
	SellerID    primitive.ObjectID `bson:"seller_id" json:"seller_id"`
	BuyerID     primitive.ObjectID `bson:"buyer_id" json:"buyer_id"`
	LineItems   []LineItem         `bson:"line_items" json:"line_items"`
	TotalAmount int64              `bson:"total_amount" json:"total_amount"`
	Currency    string             `bson:"currency" json:"currency"`
	Status      OrderStatus        `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
