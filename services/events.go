package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

const defaultCurrency = "KES"

type LineItemInput struct {
	ProductID primitive.ObjectID `json:"product_id"`
	Quantity  int64              `json:"quantity"`
}

type CreateEventInput struct {
	CreatorID   primitive.ObjectID
	Title       string
	Description string
	Category    models.Category
	LineItems   []LineItemInput
	Window      models.Window
	Visibility  models.Visibility
	Currency    string
}

// EventChanges lists the fields an owner wants to change. Nil fields are
// left alone; a non-nil empty LineItems is rejected.
type EventChanges struct {
	Title       *string
	Description *string
	Category    *models.Category
	Visibility  *models.Visibility
	LineItems   []LineItemInput
	StartDate   *time.Time
	EndDate     *time.Time
	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int64
}

func (c EventChanges) empty() bool {
	return c.Title == nil && c.Description == nil && c.Category == nil && c.Visibility == nil &&
		c.LineItems == nil && c.StartDate == nil && c.EndDate == nil
}

// Events is the event aggregate: creation, edits and pure reads.
type Events struct {
	store     EventStore
	catalog   Catalog
	lifecycle *Lifecycle
	now       func() time.Time
	tracer    trace.Tracer
}

func (s *Events) Create(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "events.Create")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	if in.CreatorID.IsZero() {
		return nil, validationf("creator is required")
	}

	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		return nil, validationf("unknown category %q", category)
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !visibility.Valid() {
		return nil, validationf("unknown visibility %q", visibility)
	}

	now := s.now()
	if err := validateWindow(in.Window, now, true); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, in.LineItems)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	event := &models.Event{
		ID:           primitive.NewObjectID(),
		CreatorID:    in.CreatorID,
		SellerID:     items[0].SellerID,
		Title:        title,
		Category:     category,
		Description:  strings.TrimSpace(in.Description),
		LineItems:    items,
		Currency:     currency,
		TargetAmount: models.TargetFor(items),
		Window:       in.Window,
		Visibility:   visibility,
		Status:       models.EventDraft,
		Images:       []string{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("event.id", event.ID.Hex()), attribute.Int64("event.target", event.TargetAmount))
	return event, nil
}

// Edit applies owner changes while the event is draft or active. A new
// product list recomputes the target, which may not drop below what has
// already been confirmed.
func (s *Events) Edit(ctx context.Context, id primitive.ObjectID, changes EventChanges) (*models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "events.Edit", trace.WithAttributes(attribute.String("event.id", id.Hex())))
	defer span.End()

	if changes.empty() {
		return nil, validationf("no fields to update")
	}

	current, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	// A started completion has to finish before the snapshot may change.
	if current, err = s.lifecycle.resumeCompletion(ctx, current); err != nil {
		return nil, err
	}
	if !current.Status.Editable() {
		return nil, invalidStatef("event is %s and can no longer be edited", current.Status)
	}

	var items []models.LineItem
	if changes.LineItems != nil {
		// Catalog lookups happen before entering the critical section.
		if items, err = s.resolveItems(ctx, changes.LineItems); err != nil {
			return nil, err
		}
	}

	var title string
	if changes.Title != nil {
		if title = strings.TrimSpace(*changes.Title); title == "" {
			return nil, validationf("title is required")
		}
	}
	if changes.Category != nil && !changes.Category.Valid() {
		return nil, validationf("unknown category %q", *changes.Category)
	}
	if changes.Visibility != nil && !changes.Visibility.Valid() {
		return nil, validationf("unknown visibility %q", *changes.Visibility)
	}

	now := s.now()
	updated, err := s.store.UpdateEvent(ctx, id, func(e *models.Event) error {
		if !e.Status.Editable() {
			return invalidStatef("event is %s and can no longer be edited", e.Status)
		}
		if changes.ExpectedVersion != 0 && changes.ExpectedVersion != e.Version {
			return conflictf("event changed since version %d", changes.ExpectedVersion)
		}
		if e.Completion != nil {
			return conflictf("event is being completed")
		}

		window := e.Window
		if changes.StartDate != nil {
			window.StartDate = *changes.StartDate
		}
		if changes.EndDate != nil {
			window.EndDate = *changes.EndDate
		}
		if changes.StartDate != nil || changes.EndDate != nil {
			if err := validateWindow(window, now, changes.StartDate != nil); err != nil {
				return err
			}
		}

		if items != nil {
			target := models.TargetFor(items)
			if target < e.CurrentAmount {
				return validationf("new target %d is below the %d already contributed", target, e.CurrentAmount)
			}
			e.LineItems = items
			e.SellerID = items[0].SellerID
			e.TargetAmount = target
		}
		if changes.Title != nil {
			e.Title = title
		}
		if changes.Description != nil {
			e.Description = strings.TrimSpace(*changes.Description)
		}
		if changes.Category != nil {
			e.Category = *changes.Category
		}
		if changes.Visibility != nil {
			e.Visibility = *changes.Visibility
		}
		e.Window = window
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.EventActive && updated.CurrentAmount >= updated.TargetAmount {
		return s.lifecycle.settle(ctx, updated)
	}
	return updated, nil
}

// AddImages appends cover image URLs while the event is still open.
func (s *Events) AddImages(ctx context.Context, id primitive.ObjectID, urls []string) (*models.Event, error) {
	if len(urls) == 0 {
		return nil, validationf("no images to add")
	}
	now := s.now()
	return s.store.UpdateEvent(ctx, id, func(e *models.Event) error {
		if !e.Status.Editable() {
			return invalidStatef("event is %s and can no longer be edited", e.Status)
		}
		e.Images = append(e.Images, urls...)
		e.UpdatedAt = now
		return nil
	})
}

func (s *Events) Get(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Events) List(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	if filter.Status != "" && !filter.Status.Editable() && !filter.Status.Terminal() {
		return nil, validationf("unknown status %q", filter.Status)
	}
	if filter.Visibility != "" && !filter.Visibility.Valid() {
		return nil, validationf("unknown visibility %q", filter.Visibility)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, validationf("unknown category %q", filter.Category)
	}
	return s.store.ListEvents(ctx, filter)
}

// Progress reads the latest committed totals; it never writes.
func (s *Events) Progress(ctx context.Context, id primitive.ObjectID) (models.Progress, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return models.Progress{}, err
	}
	return progressOf(event, s.now()), nil
}

func progressOf(e *models.Event, now time.Time) models.Progress {
	var percent float64
	if e.TargetAmount > 0 {
		percent = math.Min(100, float64(e.CurrentAmount)/float64(e.TargetAmount)*100)
		percent = math.Round(percent*100) / 100
	}
	daysLeft := int(dayOf(e.Window.EndDate).Sub(dayOf(now)).Hours() / 24)
	if daysLeft < 0 || e.Status.Terminal() {
		daysLeft = 0
	}
	return models.Progress{
		EventID:       e.ID,
		Status:        e.Status,
		CurrentAmount: e.CurrentAmount,
		TargetAmount:  e.TargetAmount,
		Percent:       percent,
		DaysLeft:      daysLeft,
		Version:       e.Version,
	}
}

// resolveItems snapshots prices from the catalog. Repeated products are
// merged so the target counts each product once.
func (s *Events) resolveItems(ctx context.Context, inputs []LineItemInput) ([]models.LineItem, error) {
	if len(inputs) == 0 {
		return nil, validationf("at least one product is required")
	}

	quantities := make(map[primitive.ObjectID]int64, len(inputs))
	order := make([]primitive.ObjectID, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID.IsZero() {
			return nil, validationf("product id is required")
		}
		if in.Quantity < 1 {
			return nil, validationf("quantity for product %s must be at least 1", in.ProductID.Hex())
		}
		if _, seen := quantities[in.ProductID]; !seen {
			order = append(order, in.ProductID)
		}
		quantities[in.ProductID] += in.Quantity
	}

	items := make([]models.LineItem, 0, len(order))
	for _, productID := range order {
		snap, err := s.catalog.Lookup(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, validationf("product %s not found", productID.Hex())
			}
			return nil, &Error{Kind: KindValidation, Message: "product lookup failed for " + productID.Hex(), Cause: err}
		}
		if snap.UnitPrice <= 0 {
			return nil, validationf("product %s has no valid price", productID.Hex())
		}
		qty := quantities[productID]
		if qty > snap.AvailableStock {
			return nil, validationf("only %d of product %s in stock", snap.AvailableStock, productID.Hex())
		}
		if len(items) > 0 && items[0].SellerID != snap.SellerID {
			return nil, validationf("all products must come from the same seller")
		}
		items = append(items, models.LineItem{
			ProductID: productID,
			Name:      snap.Name,
			SellerID:  snap.SellerID,
			Quantity:  qty,
			UnitPrice: snap.UnitPrice,
		})
	}
	return items, nil
}

func validateWindow(w models.Window, now time.Time, checkStart bool) error {
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return validationf("start and end dates are required")
	}
	if checkStart && dayOf(w.StartDate).Before(dayOf(now)) {
		return validationf("start date cannot be in the past")
	}
	if w.EndDate.Before(w.StartDate) {
		return validationf("end date must not be before start date")
	}
	return nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
