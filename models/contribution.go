package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionConfirmed ContributionStatus = "confirmed"
	ContributionFailed    ContributionStatus = "failed"
)

type Contribution struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	EventID            primitive.ObjectID  `bson:"event_id" json:"event_id"`
	ContributorID      *primitive.ObjectID `bson:"contributor_id,omitempty" json:"contributor_id,omitempty"`
	ContributorName    string              `bson:"contributor_name,omitempty" json:"contributor_name,omitempty"`
	ContributorContact string              `bson:"contributor_contact,omitempty" json:"contributor_contact,omitempty"`
	Message            string              `bson:"message,omitempty" json:"message,omitempty"`
	Amount             int64               `bson:"amount" json:"amount"`
	Currency           string              `bson:"currency" json:"currency"`
	Method             string              `bson:"method,omitempty" json:"method,omitempty"` // MPESA, STRIPE, CASH
	PaymentRef         string              `bson:"payment_reference" json:"payment_reference"`
	Status             ContributionStatus  `bson:"status" json:"status"`
	FailureReason      string              `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at" json:"updated_at"`
	ConfirmedAt        *time.Time          `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}

// Anonymous reports whether the pledge has no contributor account behind it.
func (c *Contribution) Anonymous() bool {
	return c.ContributorID == nil
}
