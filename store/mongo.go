package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

const (
	EventsCollection        = "events"
	ContributionsCollection = "contributions"
	OrdersCollection        = "orders"
	ProductsCollection      = "products"

	maxUpdateAttempts = 16
)

// Mongo persists the funding lifecycle. Event writes are optimistic: a
// replace only lands if the stored version is the one that was read, and
// the write is retried otherwise. Confirmations run in a transaction so the
// contribution and its event total change together, which needs a replica
// set.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{client: client, db: client.Database(dbName)}
}

// Connect dials and pings MongoDB.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique keys the lifecycle relies on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ContributionsCollection: {
			{Keys: bson.D{{Key: "payment_reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		EventsCollection: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "visibility", Value: 1}}},
		},
		ProductsCollection: {
			{Keys: bson.D{{Key: "seller_id", Value: 1}}},
		},
	}
	for name, specs := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *Mongo) events() *mongo.Collection        { return m.db.Collection(EventsCollection) }
func (m *Mongo) contributions() *mongo.Collection { return m.db.Collection(ContributionsCollection) }
func (m *Mongo) orders() *mongo.Collection        { return m.db.Collection(OrdersCollection) }
func (m *Mongo) products() *mongo.Collection      { return m.db.Collection(ProductsCollection) }

// ---------------- EVENTS ----------------

func (m *Mongo) InsertEvent(ctx context.Context, event *models.Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if _, err := m.events().InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return services.ErrDuplicateKey
		}
		return fmt.Errorf("could not create event: %w", err)
	}
	return nil
}

func (m *Mongo) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var event models.Event
	if err := m.events().FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.NotFound("event")
		}
		return nil, fmt.Errorf("could not fetch event: %w", err)
	}
	return &event, nil
}

func (m *Mongo) ListEvents(ctx context.Context, filter services.EventFilter) ([]models.Event, error) {
	query := bson.M{}
	if filter.CreatorID != nil {
		query["creator_id"] = *filter.CreatorID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Visibility != "" {
		query["visibility"] = filter.Visibility
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Query != "" {
		query["title"] = bson.M{"$regex": regexp.QuoteMeta(filter.Query), "$options": "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := m.events().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("could not fetch events: %w", err)
	}
	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("could not decode events: %w", err)
	}
	return events, nil
}

func (m *Mongo) UpdateEvent(ctx context.Context, id primitive.ObjectID, mutate func(*models.Event) error) (*models.Event, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := m.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		next.ID = current.ID
		next.Version = current.Version + 1

		res, err := m.events().ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, next)
		if err != nil {
			return nil, fmt.Errorf("could not update event: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, &services.Error{Kind: services.KindConflict, Message: "event is busy, retry later", Cause: services.ErrStaleVersion}
}

// ---------------- CONTRIBUTIONS ----------------

func (m *Mongo) InsertContribution(ctx context.Context, c *models.Contribution) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, err := m.contributions().InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return services.ErrDuplicateKey
		}
		return fmt.Errorf("could not create contribution: %w", err)
	}
	return nil
}

func (m *Mongo) GetContributionByRef(ctx context.Context, ref string) (*models.Contribution, error) {
	var c models.Contribution
	if err := m.contributions().FindOne(ctx, bson.M{"payment_reference": ref}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.NotFound("contribution")
		}
		return nil, fmt.Errorf("could not fetch contribution: %w", err)
	}
	return &c, nil
}

func (m *Mongo) ListContributions(ctx context.Context, eventID primitive.ObjectID) ([]models.Contribution, error) {
	cursor, err := m.contributions().Find(ctx, bson.M{"event_id": eventID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("could not fetch contributions: %w", err)
	}
	contributions := []models.Contribution{}
	if err := cursor.All(ctx, &contributions); err != nil {
		return nil, fmt.Errorf("could not decode contributions: %w", err)
	}
	return contributions, nil
}

type confirmOutcome struct {
	contribution *models.Contribution
	event        *models.Event
	applied      bool
}

func (m *Mongo) ConfirmContribution(ctx context.Context, ref string, amount int64, at time.Time, evaluate func(*models.Event) bool) (*models.Contribution, *models.Event, bool, error) {
	session, err := m.client.StartSession()
	if err != nil {
		return nil, nil, false, fmt.Errorf("could not start session: %w", err)
	}
	defer session.EndSession(ctx)

	// WithTransaction reruns the callback on transient write conflicts, so
	// every read happens inside it.
	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		c, err := m.GetContributionByRef(sc, ref)
		if err != nil {
			return nil, err
		}
		if c.Status == models.ContributionConfirmed {
			event, err := m.GetEvent(sc, c.EventID)
			if err != nil {
				return nil, err
			}
			return confirmOutcome{contribution: c, event: event}, nil
		}

		upd, err := m.contributions().UpdateOne(sc,
			bson.M{"_id": c.ID, "status": c.Status},
			bson.M{
				"$set":   bson.M{"status": models.ContributionConfirmed, "amount": amount, "confirmed_at": at, "updated_at": at},
				"$unset": bson.M{"failure_reason": ""},
			})
		if err != nil {
			return nil, fmt.Errorf("could not confirm contribution: %w", err)
		}
		if upd.MatchedCount == 0 {
			return nil, &services.Error{Kind: services.KindConflict, Message: "contribution changed concurrently", Cause: services.ErrStaleVersion}
		}

		var event models.Event
		err = m.events().FindOneAndUpdate(sc,
			bson.M{"_id": c.EventID},
			bson.M{
				"$inc": bson.M{"current_amount": amount, "version": 1},
				"$set": bson.M{"updated_at": at},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&event)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, services.NotFound("event")
			}
			return nil, fmt.Errorf("could not increment event total: %w", err)
		}

		if evaluate != nil {
			next := event.Clone()
			if evaluate(next) {
				next.Version = event.Version + 1
				if _, err := m.events().ReplaceOne(sc, bson.M{"_id": event.ID, "version": event.Version}, next); err != nil {
					return nil, fmt.Errorf("could not record completion claim: %w", err)
				}
				event = *next
			}
		}

		c.Status = models.ContributionConfirmed
		c.Amount = amount
		c.FailureReason = ""
		c.ConfirmedAt = &at
		c.UpdatedAt = at
		return confirmOutcome{contribution: c, event: &event, applied: true}, nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	out := res.(confirmOutcome)
	return out.contribution, out.event, out.applied, nil
}

func (m *Mongo) FailContribution(ctx context.Context, ref, reason string, at time.Time) (*models.Contribution, bool, error) {
	var c models.Contribution
	err := m.contributions().FindOneAndUpdate(ctx,
		bson.M{"payment_reference": ref, "status": models.ContributionPending},
		bson.M{"$set": bson.M{"status": models.ContributionFailed, "failure_reason": reason, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err == nil {
		return &c, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("could not fail contribution: %w", err)
	}
	existing, err := m.GetContributionByRef(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// ---------------- ORDERS ----------------

func (m *Mongo) CreateOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := m.orders().InsertOne(ctx, order); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("could not create order: %w", err)
		}
		existing, err := m.OrderForEvent(ctx, order.EventID)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return existing.ID, nil
	}
	return order.ID, nil
}

func (m *Mongo) GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"_id": id})
}

func (m *Mongo) OrderForEvent(ctx context.Context, eventID primitive.ObjectID) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"event_id": eventID})
}

func (m *Mongo) findOrder(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	if err := m.orders().FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.NotFound("order")
		}
		return nil, fmt.Errorf("could not fetch order: %w", err)
	}
	return &order, nil
}

// ---------------- CATALOG ----------------

func (m *Mongo) InsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := m.products().InsertOne(ctx, p); err != nil {
		return fmt.Errorf("could not create product: %w", err)
	}
	return nil
}

func (m *Mongo) ListProducts(ctx context.Context, sellerID *primitive.ObjectID) ([]models.Product, error) {
	filter := bson.M{}
	if sellerID != nil {
		filter["seller_id"] = *sellerID
	}
	cursor, err := m.products().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("could not fetch products: %w", err)
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("could not decode products: %w", err)
	}
	return products, nil
}

func (m *Mongo) Lookup(ctx context.Context, productID primitive.ObjectID) (models.Snapshot, error) {
	var p models.Product
	if err := m.products().FindOne(ctx, bson.M{"_id": productID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Snapshot{}, services.NotFound("product")
		}
		return models.Snapshot{}, fmt.Errorf("could not fetch product: %w", err)
	}
	return snapshotOf(&p), nil
}

var (
	_ services.EventStore        = (*Mongo)(nil)
	_ services.ContributionStore = (*Mongo)(nil)
	_ services.OrderSink         = (*Mongo)(nil)
	_ services.Catalog           = (*Mongo)(nil)
)
