package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	store "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	mem    *store.Memory
	app    *services.App
	router *Router
	dedupe *MemoryDedupe
	event  *models.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithOrders(t, nil)
}

// newHarnessWithOrders builds the harness on a custom order sink; nil uses
// the memory store.
func newHarnessWithOrders(t *testing.T, orders func(*store.Memory) services.OrderSink) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{mem: store.NewMemory(), dedupe: NewMemoryDedupe()}

	product := &models.Product{SellerID: primitive.NewObjectID(), Name: "Tent", Price: 5000, Stock: 4}
	require.NoError(t, h.mem.InsertProduct(ctx, product))

	var sink services.OrderSink = h.mem
	if orders != nil {
		sink = orders(h.mem)
	}
	h.app = services.New(services.Deps{
		Events:        h.mem,
		Contributions: h.mem,
		Orders:        sink,
		Products:      h.mem,
	}, services.Options{})

	now := time.Now().UTC()
	event, err := h.app.Events.Create(ctx, services.CreateEventInput{
		CreatorID: primitive.NewObjectID(),
		Title:     "Camping trip",
		LineItems: []services.LineItemInput{{ProductID: product.ID, Quantity: 2}},
		Window:    models.Window{StartDate: now, EndDate: now.AddDate(0, 1, 0)},
	})
	require.NoError(t, err)
	h.event, err = h.app.Lifecycle.Activate(ctx, event.ID)
	require.NoError(t, err)

	h.router = NewRouter(discard, h.app.Ledger, h.dedupe)
	return h
}

func TestRouterConfirmsRecordedPledge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 4000, PaymentRef: "mp-1"})
	require.NoError(t, err)

	// Amount omitted: the pledged amount is used.
	res, err := h.router.Handle(ctx, Signal{PaymentReference: "mp-1", Outcome: "CONFIRMED"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, string(models.EventActive), res.Status)

	dup, err := h.router.Handle(ctx, Signal{PaymentReference: "mp-1", Outcome: OutcomeConfirmed})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), event.CurrentAmount)
}

func TestRouterRecordsUnknownReference(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.router.Handle(ctx, Signal{
		PaymentReference: "mp-2",
		EventID:          h.event.ID,
		Amount:           10000,
		Outcome:          OutcomeConfirmed,
		ContributorName:  "Aunt May",
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, string(models.EventCompleted), res.Status)

	c, err := h.app.Ledger.Get(ctx, "mp-2")
	require.NoError(t, err)
	assert.Equal(t, "Aunt May", c.ContributorName)
	assert.Equal(t, 1, h.mem.OrderCount(h.event.ID))
}

func TestRouterRedeliveryWithoutDedupe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 3000, PaymentRef: "mp-3"})
	require.NoError(t, err)

	// A fresh dedupe store per delivery, as after a cache flush.
	for i := 0; i < 3; i++ {
		r := NewRouter(discard, h.app.Ledger, NewMemoryDedupe())
		res, err := r.Handle(ctx, Signal{PaymentReference: "mp-3", Amount: 3000, Outcome: OutcomeConfirmed})
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.Applied)
	}

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), event.CurrentAmount)
}

func TestRouterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 3000, PaymentRef: "mp-4"})
	require.NoError(t, err)

	res, err := h.router.Handle(ctx, Signal{PaymentReference: "mp-4", Outcome: OutcomeFailed, Reason: "declined"})
	require.NoError(t, err)
	assert.Equal(t, string(models.ContributionFailed), res.Status)

	_, err = h.router.Handle(ctx, Signal{PaymentReference: "mp-4", Outcome: "refunded"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = h.router.Handle(ctx, Signal{Outcome: OutcomeConfirmed})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = h.router.Handle(ctx, Signal{PaymentReference: "nobody", Outcome: OutcomeConfirmed})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRouterRejectsSignalForAnotherEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 5000, PaymentRef: "mp-6"})
	require.NoError(t, err)

	other := primitive.NewObjectID()
	_, err = h.router.Handle(ctx, Signal{PaymentReference: "mp-6", EventID: other, Amount: 5000, Outcome: OutcomeConfirmed})
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = h.router.Handle(ctx, Signal{PaymentReference: "mp-6", EventID: other, Outcome: OutcomeFailed})
	assert.ErrorIs(t, err, services.ErrValidation)

	c, err := h.app.Ledger.Get(ctx, "mp-6")
	require.NoError(t, err)
	assert.Equal(t, models.ContributionPending, c.Status)
	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Zero(t, event.CurrentAmount)

	// Naming the right event is fine.
	res, err := h.router.Handle(ctx, Signal{PaymentReference: "mp-6", EventID: h.event.ID, Outcome: OutcomeConfirmed})
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

// fakeReader serves a fixed list of messages, then blocks until cancelled.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
	// onCommit runs before an offset is recorded.
	onCommit func(kafka.Message)
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.onCommit != nil {
		for _, m := range msgs {
			r.onCommit(m)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerAppliesAndCommits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 6000, PaymentRef: "k-1"})
	require.NoError(t, err)

	value := func(s Signal) []byte {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		return b
	}
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: value(Signal{PaymentReference: "k-1", Amount: 6000, Outcome: OutcomeConfirmed})},
		{Offset: 2, Value: []byte("{not json")},
		{Offset: 3, Value: value(Signal{PaymentReference: "k-1", Amount: 6000, Outcome: OutcomeConfirmed})},
		{Offset: 4, Value: value(Signal{PaymentReference: "k-2", EventID: h.event.ID, Amount: 4000, Outcome: OutcomeConfirmed})},
	}}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewConsumer(discard, reader, h.router).Run(runCtx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 4 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.commits())
	assert.True(t, reader.closed)

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventCompleted, event.Status)
	assert.Equal(t, int64(10000), event.CurrentAmount)
	assert.Equal(t, 1, h.mem.OrderCount(h.event.ID))
}

// failingDedupe simulates a redis outage.
type failingDedupe struct{}

func (failingDedupe) Seen(ctx context.Context, key string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingDedupe) Mark(ctx context.Context, key string) error {
	return errors.New("redis: connection refused")
}

func TestRouterSurvivesDedupeOutage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 2000, PaymentRef: "mp-5"})
	require.NoError(t, err)

	r := NewRouter(discard, h.app.Ledger, failingDedupe{})
	for i := 0; i < 2; i++ {
		_, err := r.Handle(ctx, Signal{PaymentReference: "mp-5", Outcome: OutcomeConfirmed})
		require.NoError(t, err)
	}

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), event.CurrentAmount)
}

// outageSink fails CreateOrder until failures run out; a negative count
// never recovers.
type outageSink struct {
	*store.Memory

	mu       sync.Mutex
	failures int
	attempts int
}

func (s *outageSink) CreateOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	s.mu.Lock()
	s.attempts++
	failing := s.failures != 0
	if s.failures > 0 {
		s.failures--
	}
	s.mu.Unlock()
	if failing {
		return primitive.NilObjectID, errors.New("orders: connection reset")
	}
	return s.Memory.CreateOrder(ctx, order)
}

func (s *outageSink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func fastConsumer(reader Reader, router *Router) *Consumer {
	c := NewConsumer(discard, reader, router)
	c.backoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond
	return c
}

func TestConsumerRetriesUntilOrderIsCreated(t *testing.T) {
	sink := &outageSink{failures: 3}
	h := newHarnessWithOrders(t, func(m *store.Memory) services.OrderSink {
		sink.Memory = m
		return sink
	})
	ctx := context.Background()
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 10000, PaymentRef: "k-9"})
	require.NoError(t, err)

	value, err := json.Marshal(Signal{PaymentReference: "k-9", Amount: 10000, Outcome: OutcomeConfirmed})
	require.NoError(t, err)

	var statusAtCommit models.EventStatus
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: value}}}
	reader.onCommit = func(kafka.Message) {
		event, err := h.app.Events.Get(ctx, h.event.ID)
		if err == nil {
			statusAtCommit = event.Status
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- fastConsumer(reader, h.router).Run(runCtx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{7}, reader.commits())
	assert.Equal(t, models.EventCompleted, statusAtCommit)
	assert.Equal(t, 4, sink.attemptCount())

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventCompleted, event.Status)
	assert.Equal(t, int64(10000), event.CurrentAmount)
	assert.Equal(t, 1, h.mem.OrderCount(h.event.ID))
}

func TestConsumerLeavesRetryingMessageUncommittedOnShutdown(t *testing.T) {
	sink := &outageSink{failures: -1}
	h := newHarnessWithOrders(t, func(m *store.Memory) services.OrderSink {
		sink.Memory = m
		return sink
	})
	ctx := context.Background()
	_, err := h.app.Ledger.Record(ctx, services.RecordInput{EventID: h.event.ID, Amount: 10000, PaymentRef: "k-10"})
	require.NoError(t, err)

	value, err := json.Marshal(Signal{PaymentReference: "k-10", Amount: 10000, Outcome: OutcomeConfirmed})
	require.NoError(t, err)
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 11, Value: value}}}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- fastConsumer(reader, h.router).Run(runCtx) }()

	require.Eventually(t, func() bool { return sink.attemptCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, reader.commits())
	assert.True(t, reader.closed)

	event, err := h.app.Events.Get(ctx, h.event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventActive, event.Status)
	assert.Equal(t, int64(10000), event.CurrentAmount)
	assert.Nil(t, event.Completion)
	assert.Zero(t, h.mem.OrderCount(h.event.ID))

	seen, err := h.dedupe.Seen(ctx, "payment:k-10:confirmed")
	require.NoError(t, err)
	assert.False(t, seen)
}
