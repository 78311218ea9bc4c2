package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

type trigger string

const (
	triggerFunded   trigger = "funded"
	triggerCheckout trigger = "checkout"
	// triggerRecover finishes a completion that an earlier claimant started.
	triggerRecover trigger = "recover"
)

var (
	// errNoChange aborts an UpdateEvent without writing.
	errNoChange = errors.New("no change")
	// errClaimLost means another caller took over an abandoned claim.
	errClaimLost = errors.New("completion claim lost")
)

// Lifecycle owns every status transition of an event.
//
// Completion runs in three steps. A caller first claims completion inside
// the event's critical section; only one live claim can exist, so exactly
// one caller proceeds. The claimant then creates the order with no lock
// held, and finally flips active to completed in a second critical section
// that checks its claim token. If the order cannot be created the claim is
// released and the event stays active, so no completed event lacks an order.
type Lifecycle struct {
	events   EventStore
	orders   *Orders
	notifier Notifier
	opts     Options
	log      *slog.Logger
	tracer   trace.Tracer
}

func (l *Lifecycle) Activate(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.Activate", trace.WithAttributes(attribute.String("event.id", id.Hex())))
	defer span.End()

	now := l.opts.Now()
	event, err := l.events.UpdateEvent(ctx, id, func(e *models.Event) error {
		switch e.Status {
		case models.EventActive:
			return errNoChange
		case models.EventDraft:
		default:
			return invalidStatef("cannot activate a %s event", e.Status)
		}
		e.Status = models.EventActive
		e.ActivatedAt = &now
		e.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errNoChange) {
		event, err = l.events.GetEvent(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	// Pledges confirmed while in draft may already cover the target.
	return l.settle(ctx, event)
}

func (l *Lifecycle) Cancel(ctx context.Context, id primitive.ObjectID, reason string) (*models.Event, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.Cancel", trace.WithAttributes(attribute.String("event.id", id.Hex())))
	defer span.End()

	current, err := l.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = l.resumeCompletion(ctx, current); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	now := l.opts.Now()
	event, err := l.events.UpdateEvent(ctx, id, func(e *models.Event) error {
		if !e.Status.Editable() {
			return invalidStatef("cannot cancel a %s event", e.Status)
		}
		if e.Completion != nil {
			return conflictf("event is being completed")
		}
		e.Status = models.EventCancelled
		e.CancelReason = reason
		e.CancelledAt = &now
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := payloadOf(event, now)
	payload.Reason = reason
	l.notify(ctx, models.NotifyCancelled, payload)
	return event, nil
}

// Checkout is the creator-initiated completion of an active event.
func (l *Lifecycle) Checkout(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.Checkout", trace.WithAttributes(attribute.String("event.id", id.Hex())))
	defer span.End()

	event, err := l.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventActive {
		return nil, invalidStatef("cannot check out a %s event", event.Status)
	}
	if !l.guard(event, triggerCheckout) {
		return nil, invalidStatef("target of %d not reached (%d contributed)", event.TargetAmount, event.CurrentAmount)
	}

	done, err := l.complete(ctx, id, triggerCheckout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if done.Status == models.EventActive {
		return nil, conflictf("event is being completed")
	}
	if done.Status != models.EventCompleted {
		return nil, invalidStatef("cannot check out a %s event", done.Status)
	}
	return done, nil
}

// settle completes an active event whose target is covered. It is safe to
// call any number of times.
func (l *Lifecycle) settle(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event.Status != models.EventActive || event.CurrentAmount < event.TargetAmount {
		return event, nil
	}
	return l.complete(ctx, event.ID, triggerFunded)
}

// resumeCompletion completes an active event whose completion was started but never
// recorded: a claim past ClaimTTL, or an order already on file with no claim
// (a sink call that wrote the order and still reported failure). Only
// completers clear a claim; the sink hands back the existing order.
func (l *Lifecycle) resumeCompletion(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event.Status != models.EventActive {
		return event, nil
	}
	if event.Completion != nil {
		if l.claimLive(event, l.opts.Now()) {
			return event, nil
		}
		l.log.Warn("taking over abandoned completion claim", "event_id", event.ID.Hex())
		return l.complete(ctx, event.ID, triggerRecover)
	}

	order, err := l.orders.ForEvent(ctx, event.ID)
	if errors.Is(err, ErrNotFound) {
		return event, nil
	}
	if err != nil {
		return nil, err
	}
	l.log.Error("active event already owns an order, completing it", "event_id", event.ID.Hex(), "order_id", order.ID.Hex())
	return l.complete(ctx, event.ID, triggerRecover)
}

func (l *Lifecycle) complete(ctx context.Context, id primitive.ObjectID, trig trigger) (*models.Event, error) {
	token := newClaimToken()
	now := l.opts.Now()
	claimed, err := l.events.UpdateEvent(ctx, id, func(e *models.Event) error {
		if !l.claim(e, token, trig, now) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return l.events.GetEvent(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return l.finish(ctx, claimed, token, trig)
}

// claim records a completion claim on e if the transition is allowed and no
// live claim exists. It runs inside the event's critical section.
func (l *Lifecycle) claim(e *models.Event, token string, trig trigger, now time.Time) bool {
	if e.Status != models.EventActive || l.claimLive(e, now) || !l.guard(e, trig) {
		return false
	}
	e.Completion = &models.CompletionClaim{Token: token, ClaimedAt: now}
	return true
}

func (l *Lifecycle) claimLive(e *models.Event, now time.Time) bool {
	return e.Completion != nil && now.Sub(e.Completion.ClaimedAt) < l.opts.ClaimTTL
}

func (l *Lifecycle) guard(e *models.Event, trig trigger) bool {
	if trig == triggerRecover {
		return true
	}
	if trig == triggerCheckout && l.opts.AllowPartialCheckout {
		return e.CurrentAmount >= 0
	}
	return e.CurrentAmount >= e.TargetAmount
}

// finish runs the side effects of a won claim: order, status flip, notices.
func (l *Lifecycle) finish(ctx context.Context, claimed *models.Event, token string, trig trigger) (*models.Event, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.Complete", trace.WithAttributes(
		attribute.String("event.id", claimed.ID.Hex()),
		attribute.String("trigger", string(trig)),
	))
	defer span.End()

	orderID, err := l.orders.CreateFromEvent(ctx, claimed)
	if err != nil {
		l.release(ctx, claimed.ID, token)
		span.RecordError(err)
		span.SetStatus(codes.Error, "order projection failed")
		l.log.Error("order projection failed, event stays active", "event_id", claimed.ID.Hex(), "err", err)
		return nil, unavailable("order could not be created, retry later", err)
	}

	now := l.opts.Now()
	done, err := l.events.UpdateEvent(ctx, claimed.ID, func(e *models.Event) error {
		if e.Status != models.EventActive || e.Completion == nil || e.Completion.Token != token {
			return errClaimLost
		}
		e.Status = models.EventCompleted
		e.OrderID = orderID
		e.Completion = nil
		e.CompletedAt = &now
		e.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errClaimLost) {
		current, getErr := l.events.GetEvent(ctx, claimed.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == models.EventCompleted {
			// Whoever took the claim over reused the same order.
			l.log.Warn("completion claim taken over", "event_id", claimed.ID.Hex(), "order_id", orderID.Hex())
			return current, nil
		}
		span.SetStatus(codes.Error, "completion claim lost")
		l.log.Error("completion claim lost after the order was created", "event_id", claimed.ID.Hex(),
			"order_id", orderID.Hex(), "status", string(current.Status))
		return nil, unavailable("completion was interrupted, retry later", errClaimLost)
	}
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("completion could not be recorded, retry later", err)
	}

	l.log.Info("event completed", "event_id", done.ID.Hex(), "order_id", orderID.Hex(),
		"current_amount", done.CurrentAmount, "target_amount", done.TargetAmount, "trigger", string(trig))

	payload := payloadOf(done, now)
	if done.CurrentAmount >= done.TargetAmount {
		l.notify(ctx, models.NotifyTargetReached, payload)
	}
	l.notify(ctx, models.NotifyCheckoutReady, payload)
	l.notify(ctx, models.NotifyCompleted, payload)
	return done, nil
}

func (l *Lifecycle) release(ctx context.Context, id primitive.ObjectID, token string) {
	now := l.opts.Now()
	_, err := l.events.UpdateEvent(ctx, id, func(e *models.Event) error {
		if e.Completion == nil || e.Completion.Token != token {
			return errNoChange
		}
		e.Completion = nil
		e.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		// The claim ages out after ClaimTTL.
		l.log.Error("could not release completion claim", "event_id", id.Hex(), "err", err)
	}
}

func (l *Lifecycle) notify(ctx context.Context, kind models.NotificationKind, payload models.NotificationPayload) {
	if err := l.notifier.Notify(ctx, kind, payload); err != nil {
		l.log.Warn("notification failed", "kind", string(kind), "event_id", payload.EventID.Hex(), "err", err)
	}
}

func payloadOf(e *models.Event, at time.Time) models.NotificationPayload {
	return models.NotificationPayload{
		EventID:       e.ID,
		Title:         e.Title,
		CreatorID:     e.CreatorID,
		SellerID:      e.SellerID,
		OrderID:       e.OrderID,
		CurrentAmount: e.CurrentAmount,
		TargetAmount:  e.TargetAmount,
		Currency:      e.Currency,
		OccurredAt:    at,
	}
}

func newClaimToken() string {
	return uuid.NewString()
}
