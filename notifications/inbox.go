package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

const Collection = "notifications"

// InboxStore keeps per-user notifications for the in-app bell.
type InboxStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
}

// Inbox files each signal for the event creator, and for the seller once
// an order exists.
type Inbox struct {
	store InboxStore
	now   func() time.Time
}

func NewInbox(store InboxStore) *Inbox {
	return &Inbox{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (n *Inbox) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	recipients := []primitive.ObjectID{p.CreatorID}
	if (kind == models.NotifyCheckoutReady || kind == models.NotifyCompleted) && !p.SellerID.IsZero() && p.SellerID != p.CreatorID {
		recipients = append(recipients, p.SellerID)
	}

	var errs []error
	for _, userID := range recipients {
		err := n.store.Insert(ctx, &models.Notification{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			Kind:      kind,
			EventID:   p.EventID,
			OrderID:   p.OrderID,
			Message:   Message(kind, p),
			CreatedAt: n.now(),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---------------- MONGO ----------------

type MongoInbox struct {
	col *mongo.Collection
}

func NewMongoInbox(db *mongo.Database) *MongoInbox {
	return &MongoInbox{col: db.Collection(Collection)}
}

func (s *MongoInbox) Insert(ctx context.Context, n *models.Notification) error {
	if _, err := s.col.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("could not store notification: %w", err)
	}
	return nil
}

func (s *MongoInbox) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100))
	if err != nil {
		return nil, fmt.Errorf("could not fetch notifications: %w", err)
	}
	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("could not decode notifications: %w", err)
	}
	return out, nil
}

func (s *MongoInbox) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("could not update notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return services.NotFound("notification")
	}
	return nil
}

// ---------------- MEMORY ----------------

type MemoryInbox struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{}
}

func (s *MemoryInbox) Insert(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *n)
	return nil
}

func (s *MemoryInbox) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Notification{}
	for _, n := range s.items {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryInbox) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].Read = true
			return nil
		}
	}
	return services.NotFound("notification")
}

var _ services.Notifier = (*Inbox)(nil)
