package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	store "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/store"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// clock is a settable time source for claim expiry.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sent struct {
	Kind    models.NotificationKind
	Payload models.NotificationPayload
}

// recorder is a Notifier that keeps every signal.
type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{Kind: kind, Payload: p})
	return nil
}

func (r *recorder) kinds(eventID primitive.ObjectID) []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.NotificationKind{}
	for _, s := range r.sent {
		if s.Payload.EventID == eventID {
			out = append(out, s.Kind)
		}
	}
	return out
}

// flakySink fails CreateOrder while broken is set and can hold callers
// inside CreateOrder until released.
type flakySink struct {
	*store.Memory

	mu      sync.Mutex
	broken  bool
	hold    chan struct{}
	entered chan struct{}
}

func (s *flakySink) setBroken(b bool) {
	s.mu.Lock()
	s.broken = b
	s.mu.Unlock()
}

// holdNext makes callers entering CreateOrder from now on wait for the
// returned channel to close, reporting each entry on entered.
func (s *flakySink) holdNext(broken bool) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = broken
	s.hold = make(chan struct{})
	if s.entered == nil {
		s.entered = make(chan struct{}, 4)
	}
	return s.hold
}

func (s *flakySink) CreateOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	s.mu.Lock()
	broken, hold, entered := s.broken, s.hold, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	if broken {
		return primitive.NilObjectID, errors.New("order sink offline")
	}
	return s.Memory.CreateOrder(ctx, order)
}

type fixture struct {
	mem      *store.Memory
	sink     *flakySink
	notes    *recorder
	app      *services.App
	seller   primitive.ObjectID
	creator  primitive.ObjectID
	productA primitive.ObjectID // 2500, stock 10
	productB primitive.ObjectID // 5000, stock 5
}

func newFixture(opts services.Options) *fixture {
	f := &fixture{
		mem:     store.NewMemory(),
		notes:   &recorder{},
		seller:  primitive.NewObjectID(),
		creator: primitive.NewObjectID(),
	}
	f.sink = &flakySink{Memory: f.mem}

	ctx := context.Background()
	a := &models.Product{SellerID: f.seller, Name: "Espresso machine", Price: 2500, Stock: 10}
	b := &models.Product{SellerID: f.seller, Name: "Grinder", Price: 5000, Stock: 5}
	_ = f.mem.InsertProduct(ctx, a)
	_ = f.mem.InsertProduct(ctx, b)
	f.productA, f.productB = a.ID, b.ID

	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	f.app = services.New(services.Deps{
		Events:        f.mem,
		Contributions: f.mem,
		Orders:        f.sink,
		Products:      f.mem,
		Notifier:      f.notes,
	}, opts)
	return f
}

func (f *fixture) window() models.Window {
	return models.Window{StartDate: testNow, EndDate: testNow.AddDate(0, 0, 30)}
}

// newEvent creates a draft event with target 10000.
func (f *fixture) newEvent(ctx context.Context) (*models.Event, error) {
	return f.app.Events.Create(ctx, services.CreateEventInput{
		CreatorID: f.creator,
		Title:     "Wedding registry",
		Category:  models.CategoryWedding,
		LineItems: []services.LineItemInput{
			{ProductID: f.productA, Quantity: 2},
			{ProductID: f.productB, Quantity: 1},
		},
		Window:     f.window(),
		Visibility: models.VisibilityPublic,
	})
}

func (f *fixture) pledge(ctx context.Context, eventID primitive.ObjectID, ref string, amount int64) error {
	_, err := f.app.Ledger.Record(ctx, services.RecordInput{
		EventID:         eventID,
		ContributorName: "friend",
		Amount:          amount,
		PaymentRef:      ref,
		Method:          "mpesa",
	})
	return err
}

func (f *fixture) confirmedSum(ctx context.Context, eventID primitive.ObjectID) int64 {
	list, _ := f.mem.ListContributions(ctx, eventID)
	var sum int64
	for _, c := range list {
		if c.Status == models.ContributionConfirmed {
			sum += c.Amount
		}
	}
	return sum
}
