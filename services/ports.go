package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

// EventStore persists the event aggregate.
//
// UpdateEvent runs mutate inside the per-event critical section: the event
// handed to mutate is the latest committed copy, and the write only lands if
// no other writer touched the event in between. A non-nil error from mutate
// aborts the write and is returned unchanged. mutate must not block on
// anything outside the store.
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id primitive.ObjectID, mutate func(*models.Event) error) (*models.Event, error)
}

// ContributionStore persists ledger entries.
type ContributionStore interface {
	// InsertContribution returns ErrDuplicateKey when the payment reference is taken.
	InsertContribution(ctx context.Context, c *models.Contribution) error
	GetContributionByRef(ctx context.Context, ref string) (*models.Contribution, error)
	ListContributions(ctx context.Context, eventID primitive.ObjectID) ([]models.Contribution, error)

	// ConfirmContribution atomically moves a pending or failed contribution to
	// confirmed with the final amount and adds that amount to its event's
	// current amount. evaluate then runs on the incremented event inside the
	// same critical section; when it returns true its changes to the event
	// are written too. When the contribution is already confirmed nothing is
	// written, evaluate is not called and applied is false.
	ConfirmContribution(ctx context.Context, ref string, amount int64, at time.Time, evaluate func(*models.Event) bool) (c *models.Contribution, event *models.Event, applied bool, err error)

	// FailContribution moves a pending contribution to failed. Any other
	// status is returned unchanged with applied false.
	FailContribution(ctx context.Context, ref, reason string, at time.Time) (c *models.Contribution, applied bool, err error)
}

// OrderSink stores seller orders. CreateOrder is idempotent per event: a
// second order for the same event returns the id of the first.
type OrderSink interface {
	CreateOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error)
	GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	OrderForEvent(ctx context.Context, eventID primitive.ObjectID) (*models.Order, error)
}

// Catalog resolves a product to its current price and stock.
type Catalog interface {
	Lookup(ctx context.Context, productID primitive.ObjectID) (models.Snapshot, error)
}

// ProductStore is the writable side of the catalog.
type ProductStore interface {
	Catalog
	InsertProduct(ctx context.Context, p *models.Product) error
	ListProducts(ctx context.Context, sellerID *primitive.ObjectID) ([]models.Product, error)
}

// Notifier receives lifecycle signals. Delivery is best effort; a returned
// error is logged and never undoes a transition.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, payload models.NotificationPayload) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, kind models.NotificationKind, payload models.NotificationPayload) error

func (f NotifierFunc) Notify(ctx context.Context, kind models.NotificationKind, payload models.NotificationPayload) error {
	return f(ctx, kind, payload)
}

type EventFilter struct {
	CreatorID  *primitive.ObjectID
	Status     models.EventStatus
	Visibility models.Visibility
	Category   models.Category
	Query      string
	Limit      int64
}
