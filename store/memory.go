package store

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

// Memory keeps everything in process. Each event has its own mutex, so
// writers to different events never wait on each other. Committed events
// are immutable snapshots swapped into a sync.Map, so readers never take an
// event lock and never see a half-applied write.
type Memory struct {
	events sync.Map // primitive.ObjectID -> *models.Event
	locks  sync.Map // primitive.ObjectID -> *sync.Mutex

	mu            sync.RWMutex
	contributions map[string]*models.Contribution
	orders        map[primitive.ObjectID]*models.Order
	orderByEvent  map[primitive.ObjectID]primitive.ObjectID
	products      map[primitive.ObjectID]*models.Product
}

func NewMemory() *Memory {
	return &Memory{
		contributions: make(map[string]*models.Contribution),
		orders:        make(map[primitive.ObjectID]*models.Order),
		orderByEvent:  make(map[primitive.ObjectID]primitive.ObjectID),
		products:      make(map[primitive.ObjectID]*models.Product),
	}
}

func (m *Memory) lockFor(id primitive.ObjectID) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (m *Memory) loadEvent(id primitive.ObjectID) (*models.Event, bool) {
	v, ok := m.events.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.Event), true
}

// ---------------- EVENTS ----------------

func (m *Memory) InsertEvent(ctx context.Context, event *models.Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if _, loaded := m.events.LoadOrStore(event.ID, event.Clone()); loaded {
		return services.ErrDuplicateKey
	}
	return nil
}

func (m *Memory) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	e, ok := m.loadEvent(id)
	if !ok {
		return nil, services.NotFound("event")
	}
	return e.Clone(), nil
}

func (m *Memory) ListEvents(ctx context.Context, filter services.EventFilter) ([]models.Event, error) {
	var query *regexp.Regexp
	if filter.Query != "" {
		query = regexp.MustCompile("(?i)" + regexp.QuoteMeta(filter.Query))
	}

	out := []models.Event{}
	m.events.Range(func(_, v any) bool {
		e := v.(*models.Event)
		switch {
		case filter.CreatorID != nil && e.CreatorID != *filter.CreatorID:
		case filter.Status != "" && e.Status != filter.Status:
		case filter.Visibility != "" && e.Visibility != filter.Visibility:
		case filter.Category != "" && e.Category != filter.Category:
		case query != nil && !query.MatchString(e.Title):
		default:
			out = append(out, *e.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) UpdateEvent(ctx context.Context, id primitive.ObjectID, mutate func(*models.Event) error) (*models.Event, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, ok := m.loadEvent(id)
	if !ok {
		return nil, services.NotFound("event")
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	m.events.Store(id, next)
	return next.Clone(), nil
}

// ---------------- CONTRIBUTIONS ----------------

func (m *Memory) InsertContribution(ctx context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.contributions[c.PaymentRef]; exists {
		return services.ErrDuplicateKey
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	copied := *c
	m.contributions[c.PaymentRef] = &copied
	return nil
}

func (m *Memory) GetContributionByRef(ctx context.Context, ref string) (*models.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contributions[ref]
	if !ok {
		return nil, services.NotFound("contribution")
	}
	copied := *c
	return &copied, nil
}

func (m *Memory) ListContributions(ctx context.Context, eventID primitive.ObjectID) ([]models.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Contribution{}
	for _, c := range m.contributions {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ConfirmContribution(ctx context.Context, ref string, amount int64, at time.Time, evaluate func(*models.Event) bool) (*models.Contribution, *models.Event, bool, error) {
	c, err := m.GetContributionByRef(ctx, ref)
	if err != nil {
		return nil, nil, false, err
	}

	// The contribution's status only changes under its event's lock.
	lock := m.lockFor(c.EventID)
	lock.Lock()
	defer lock.Unlock()

	if c, err = m.GetContributionByRef(ctx, ref); err != nil {
		return nil, nil, false, err
	}
	current, ok := m.loadEvent(c.EventID)
	if !ok {
		return nil, nil, false, services.NotFound("event")
	}
	if c.Status == models.ContributionConfirmed {
		return c, current.Clone(), false, nil
	}

	next := current.Clone()
	next.CurrentAmount += amount
	next.UpdatedAt = at
	if evaluate != nil {
		evaluate(next)
	}
	next.Version = current.Version + 1

	c.Status = models.ContributionConfirmed
	c.Amount = amount
	c.FailureReason = ""
	c.ConfirmedAt = &at
	c.UpdatedAt = at

	m.mu.Lock()
	stored := *c
	m.contributions[ref] = &stored
	m.mu.Unlock()
	m.events.Store(next.ID, next)

	return c, next.Clone(), true, nil
}

func (m *Memory) FailContribution(ctx context.Context, ref, reason string, at time.Time) (*models.Contribution, bool, error) {
	c, err := m.GetContributionByRef(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	lock := m.lockFor(c.EventID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.contributions[ref]
	if !ok {
		return nil, false, services.NotFound("contribution")
	}
	if stored.Status != models.ContributionPending {
		copied := *stored
		return &copied, false, nil
	}
	next := *stored
	next.Status = models.ContributionFailed
	next.FailureReason = reason
	next.UpdatedAt = at
	m.contributions[ref] = &next
	copied := next
	return &copied, true, nil
}

// ---------------- ORDERS ----------------

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orderByEvent[order.EventID]; ok {
		return existing, nil
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	copied := *order
	copied.LineItems = append([]models.LineItem(nil), order.LineItems...)
	m.orders[order.ID] = &copied
	m.orderByEvent[order.EventID] = order.ID
	return order.ID, nil
}

func (m *Memory) GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, services.NotFound("order")
	}
	copied := *o
	return &copied, nil
}

func (m *Memory) OrderForEvent(ctx context.Context, eventID primitive.ObjectID) (*models.Order, error) {
	m.mu.RLock()
	id, ok := m.orderByEvent[eventID]
	m.mu.RUnlock()
	if !ok {
		return nil, services.NotFound("order")
	}
	return m.GetOrder(ctx, id)
}

// OrderCount reports how many orders exist for eventID.
func (m *Memory) OrderCount(eventID primitive.ObjectID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, o := range m.orders {
		if o.EventID == eventID {
			n++
		}
	}
	return n
}

// ---------------- CATALOG ----------------

func (m *Memory) InsertProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	copied := *p
	m.products[p.ID] = &copied
	return nil
}

func (m *Memory) ListProducts(ctx context.Context, sellerID *primitive.ObjectID) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Product{}
	for _, p := range m.products {
		if sellerID == nil || p.SellerID == *sellerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Lookup(ctx context.Context, productID primitive.ObjectID) (models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return models.Snapshot{}, services.NotFound("product")
	}
	return snapshotOf(p), nil
}

func snapshotOf(p *models.Product) models.Snapshot {
	return models.Snapshot{
		ProductID:      p.ID,
		Name:           p.Name,
		SellerID:       p.SellerID,
		UnitPrice:      p.Price,
		AvailableStock: p.Stock,
	}
}

var (
	_ services.EventStore        = (*Memory)(nil)
	_ services.ContributionStore = (*Memory)(nil)
	_ services.OrderSink         = (*Memory)(nil)
	_ services.Catalog           = (*Memory)(nil)
)
