package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

type EventsTestSuite struct {
	suite.Suite
	ctx context.Context
	f   *fixture
}

func (s *EventsTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture(services.Options{})
}

func (s *EventsTestSuite) TestCreateComputesTargetFromSnapshot() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)

	s.Equal(models.EventDraft, event.Status)
	s.Equal(int64(10000), event.TargetAmount)
	s.Zero(event.CurrentAmount)
	s.Equal(s.f.seller, event.SellerID)
	s.Equal("KES", event.Currency)
	s.Equal(int64(1), event.Version)
	s.Len(event.LineItems, 2)
	s.Equal(int64(2500), event.LineItems[0].UnitPrice)
}

func (s *EventsTestSuite) TestCreateMergesRepeatedProducts() {
	event, err := s.f.app.Events.Create(s.ctx, services.CreateEventInput{
		CreatorID: s.f.creator,
		Title:     "Birthday",
		LineItems: []services.LineItemInput{
			{ProductID: s.f.productA, Quantity: 1},
			{ProductID: s.f.productA, Quantity: 2},
		},
		Window: s.f.window(),
	})
	s.Require().NoError(err)
	s.Len(event.LineItems, 1)
	s.Equal(int64(3), event.LineItems[0].Quantity)
	s.Equal(int64(7500), event.TargetAmount)
	s.Equal(models.CategoryOther, event.Category)
	s.Equal(models.VisibilityPrivate, event.Visibility)
}

func (s *EventsTestSuite) TestCreateValidation() {
	otherSeller := &models.Product{SellerID: primitive.NewObjectID(), Name: "Vase", Price: 900, Stock: 3}
	s.Require().NoError(s.f.mem.InsertProduct(s.ctx, otherSeller))

	w := s.f.window()
	cases := map[string]services.CreateEventInput{
		"empty product list": {LineItems: nil, Window: w},
		"end before start": {
			LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 1}},
			Window:    models.Window{StartDate: w.EndDate, EndDate: w.StartDate},
		},
		"start in the past": {
			LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 1}},
			Window:    models.Window{StartDate: testNow.AddDate(0, 0, -1), EndDate: w.EndDate},
		},
		"zero quantity": {
			LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 0}},
			Window:    w,
		},
		"unknown product": {
			LineItems: []services.LineItemInput{{ProductID: primitive.NewObjectID(), Quantity: 1}},
			Window:    w,
		},
		"more than stock": {
			LineItems: []services.LineItemInput{{ProductID: s.f.productB, Quantity: 6}},
			Window:    w,
		},
		"two sellers": {
			LineItems: []services.LineItemInput{
				{ProductID: s.f.productA, Quantity: 1},
				{ProductID: otherSeller.ID, Quantity: 1},
			},
			Window: w,
		},
	}

	for name, in := range cases {
		in.CreatorID = s.f.creator
		in.Title = "Party"
		_, err := s.f.app.Events.Create(s.ctx, in)
		s.ErrorIs(err, services.ErrValidation, name)
	}

	_, err := s.f.app.Events.Create(s.ctx, services.CreateEventInput{
		CreatorID: s.f.creator,
		LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 1}},
		Window:    w,
	})
	s.ErrorIs(err, services.ErrValidation, "missing title")
}

func (s *EventsTestSuite) TestEditRecomputesTargetInDraft() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)

	edited, err := s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{
		LineItems: []services.LineItemInput{{ProductID: s.f.productB, Quantity: 3}},
	})
	s.Require().NoError(err)
	s.Equal(int64(15000), edited.TargetAmount)
	s.Equal(event.Version+1, edited.Version)
}

func (s *EventsTestSuite) TestEditBelowConfirmedAmountIsRejected() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)
	_, err = s.f.app.Lifecycle.Activate(s.ctx, event.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.f.pledge(s.ctx, event.ID, "ref-1", 6000))
	_, err = s.f.app.Ledger.Confirm(s.ctx, "ref-1", 6000)
	s.Require().NoError(err)

	before, err := s.f.app.Events.Get(s.ctx, event.ID)
	s.Require().NoError(err)

	_, err = s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{
		LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 1}},
	})
	s.ErrorIs(err, services.ErrValidation)

	after, err := s.f.app.Events.Get(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(before.TargetAmount, after.TargetAmount)
	s.Equal(before.Version, after.Version)
	s.Equal(before.LineItems, after.LineItems)
}

func (s *EventsTestSuite) TestEditToExactlyCurrentAmountCompletes() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)
	_, err = s.f.app.Lifecycle.Activate(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.f.pledge(s.ctx, event.ID, "ref-1", 5000))
	_, err = s.f.app.Ledger.Confirm(s.ctx, "ref-1", 5000)
	s.Require().NoError(err)

	edited, err := s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{
		LineItems: []services.LineItemInput{{ProductID: s.f.productA, Quantity: 2}},
	})
	s.Require().NoError(err)
	s.Equal(models.EventCompleted, edited.Status)
	s.Equal(1, s.f.mem.OrderCount(event.ID))
}

func (s *EventsTestSuite) TestEditVersionMismatchConflicts() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)

	title := "Renamed"
	_, err = s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{Title: &title, ExpectedVersion: event.Version + 5})
	s.ErrorIs(err, services.ErrConflict)

	edited, err := s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{Title: &title, ExpectedVersion: event.Version})
	s.Require().NoError(err)
	s.Equal("Renamed", edited.Title)
}

func (s *EventsTestSuite) TestEditWindow() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)

	early := event.Window.StartDate.AddDate(0, 0, -1)
	_, err = s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{EndDate: &early})
	s.ErrorIs(err, services.ErrValidation)

	later := event.Window.EndDate.AddDate(0, 0, 7)
	edited, err := s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{EndDate: &later})
	s.Require().NoError(err)
	s.True(edited.Window.EndDate.Equal(later))

	_, err = s.f.app.Events.Edit(s.ctx, event.ID, services.EventChanges{})
	s.ErrorIs(err, services.ErrValidation)
}

func (s *EventsTestSuite) TestProgressIsAPureRead() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)
	_, err = s.f.app.Lifecycle.Activate(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.f.pledge(s.ctx, event.ID, "ref-1", 4000))
	_, err = s.f.app.Ledger.Confirm(s.ctx, "ref-1", 4000)
	s.Require().NoError(err)

	current, err := s.f.app.Events.Get(s.ctx, event.ID)
	s.Require().NoError(err)

	p, err := s.f.app.Events.Progress(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(int64(4000), p.CurrentAmount)
	s.Equal(int64(10000), p.TargetAmount)
	s.InDelta(40.0, p.Percent, 0.001)
	s.Equal(30, p.DaysLeft)
	s.Equal(current.Version, p.Version)

	again, err := s.f.app.Events.Get(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(current.Version, again.Version)
}

func (s *EventsTestSuite) TestListFilters() {
	first, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)
	_, err = s.f.newEvent(s.ctx)
	s.Require().NoError(err)
	_, err = s.f.app.Lifecycle.Activate(s.ctx, first.ID)
	s.Require().NoError(err)

	active, err := s.f.app.Events.List(s.ctx, services.EventFilter{Status: models.EventActive})
	s.Require().NoError(err)
	s.Len(active, 1)
	s.Equal(first.ID, active[0].ID)

	mine, err := s.f.app.Events.List(s.ctx, services.EventFilter{CreatorID: &s.f.creator, Query: "wedding"})
	s.Require().NoError(err)
	s.Len(mine, 2)

	_, err = s.f.app.Events.List(s.ctx, services.EventFilter{Category: "karaoke"})
	s.ErrorIs(err, services.ErrValidation)
}

func (s *EventsTestSuite) TestAddImages() {
	event, err := s.f.newEvent(s.ctx)
	s.Require().NoError(err)

	updated, err := s.f.app.Events.AddImages(s.ctx, event.ID, []string{"https://img/1.jpg"})
	s.Require().NoError(err)
	s.Equal([]string{"https://img/1.jpg"}, updated.Images)

	_, err = s.f.app.Lifecycle.Cancel(s.ctx, event.ID, "")
	s.Require().NoError(err)
	_, err = s.f.app.Events.AddImages(s.ctx, event.ID, []string{"https://img/2.jpg"})
	s.ErrorIs(err, services.ErrInvalidState)
}

func TestEventsTestSuite(t *testing.T) {
	suite.Run(t, new(EventsTestSuite))
}

