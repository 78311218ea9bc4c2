package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Terminal reports whether no transition may leave the status.
func (s EventStatus) Terminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// Editable reports whether products, dates and pledges are still accepted.
func (s EventStatus) Editable() bool {
	return s == EventDraft || s == EventActive
}

type Category string

const (
	CategoryBirthday    Category = "birthday"
	CategoryWedding     Category = "wedding"
	CategoryGraduation  Category = "graduation"
	CategoryBabyShower  Category = "baby_shower"
	CategoryAnniversary Category = "anniversary"
	CategoryHoliday     Category = "holiday"
	CategoryOther       Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBirthday, CategoryWedding, CategoryGraduation, CategoryBabyShower,
		CategoryAnniversary, CategoryHoliday, CategoryOther:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate || v == VisibilityUnlisted
}

// LineItem is a product frozen at the price and quantity seen when the
// event was created or last edited.
type LineItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	SellerID  primitive.ObjectID `bson:"seller_id" json:"seller_id"`
	Quantity  int64              `bson:"quantity" json:"quantity"`
	UnitPrice int64              `bson:"unit_price" json:"unit_price"`
}

func (li LineItem) Subtotal() int64 {
	return li.Quantity * li.UnitPrice
}

// TargetFor sums price times quantity over the items.
func TargetFor(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

type Window struct {
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
}

// CompletionClaim marks the caller currently materializing the order.
type CompletionClaim struct {
	Token     string    `bson:"token" json:"-"`
	ClaimedAt time.Time `bson:"claimed_at" json:"claimed_at"`
}

type Event struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatorID     primitive.ObjectID `bson:"creator_id" json:"creator_id"`
	SellerID      primitive.ObjectID `bson:"seller_id" json:"seller_id"`
	Title         string             `bson:"title" json:"title"`
	Category      Category           `bson:"category" json:"category"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	LineItems     []LineItem         `bson:"line_items" json:"line_items"`
	Currency      string             `bson:"currency" json:"currency"`
	TargetAmount  int64              `bson:"target_amount" json:"target_amount"`
	CurrentAmount int64              `bson:"current_amount" json:"current_amount"`
	Window        Window             `bson:"window" json:"window"`
	Visibility    Visibility         `bson:"visibility" json:"visibility"`
	Status        EventStatus        `bson:"status" json:"status"`
	Images        []string           `bson:"images" json:"images"`
	Completion    *CompletionClaim   `bson:"completion,omitempty" json:"completion,omitempty"`
	OrderID       primitive.ObjectID `bson:"order_id,omitempty" json:"order_id,omitempty"`
	CancelReason  string             `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	Version       int64              `bson:"version" json:"version"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
	ActivatedAt   *time.Time         `bson:"activated_at,omitempty" json:"activated_at,omitempty"`
	CompletedAt   *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt   *time.Time         `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
}

// Clone returns a deep copy so callers never share slices with a store.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.LineItems = append([]LineItem(nil), e.LineItems...)
	out.Images = append([]string(nil), e.Images...)
	if e.Completion != nil {
		claim := *e.Completion
		out.Completion = &claim
	}
	return &out
}

// Progress is the read model behind the funding bar.
type Progress struct {
	EventID       primitive.ObjectID `json:"event_id"`
	Status        EventStatus        `json:"status"`
	CurrentAmount int64              `json:"current_amount"`
	TargetAmount  int64              `json:"target_amount"`
	Percent       float64            `json:"percent"`
	DaysLeft      int                `json:"days_left"`
	Version       int64              `json:"version"`
}
