package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

type RecordInput struct {
	EventID            primitive.ObjectID
	ContributorID      *primitive.ObjectID
	ContributorName    string
	ContributorContact string
	Message            string
	Amount             int64
	Currency           string
	Method             string
	PaymentRef         string
}

type ConfirmResult struct {
	Contribution *models.Contribution
	Event        *models.Event
	// Applied is false when the payment reference had already been applied.
	Applied bool
}

// Ledger records pledges and applies confirmed payments to event totals.
type Ledger struct {
	contributions ContributionStore
	events        EventStore
	lifecycle     *Lifecycle
	now           func() time.Time
	log           *slog.Logger
	tracer        trace.Tracer
}

// Record opens a pending contribution against a draft or active event.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (*models.Contribution, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Record", trace.WithAttributes(attribute.String("event.id", in.EventID.Hex())))
	defer span.End()

	if in.Amount <= 0 {
		return nil, validationf("amount must be greater than 0")
	}
	ref := strings.TrimSpace(in.PaymentRef)
	if ref == "" {
		return nil, validationf("payment reference is required")
	}

	event, err := l.events.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.Editable() {
		return nil, validationf("event is %s and no longer accepts contributions", event.Status)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = event.Currency
	}
	if currency != event.Currency {
		return nil, validationf("event is funded in %s, not %s", event.Currency, currency)
	}

	now := l.now()
	c := &models.Contribution{
		ID:                 primitive.NewObjectID(),
		EventID:            in.EventID,
		ContributorID:      in.ContributorID,
		ContributorName:    strings.TrimSpace(in.ContributorName),
		ContributorContact: strings.TrimSpace(in.ContributorContact),
		Message:            strings.TrimSpace(in.Message),
		Amount:             in.Amount,
		Currency:           currency,
		Method:             strings.ToUpper(strings.TrimSpace(in.Method)),
		PaymentRef:         ref,
		Status:             models.ContributionPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := l.contributions.InsertContribution(ctx, c); err != nil {
		if !errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		existing, getErr := l.contributions.GetContributionByRef(ctx, ref)
		if getErr != nil {
			return nil, getErr
		}
		if existing.EventID != in.EventID {
			return nil, validationf("payment reference %s is already used", ref)
		}
		return existing, nil
	}
	return c, nil
}

// Confirm applies a confirmed payment exactly once per payment reference.
// Redelivery returns the stored contribution untouched. If the confirmation
// covers the target, the completion transition runs before Confirm returns;
// a retryable error then means the payment is recorded but the order is not.
func (l *Ledger) Confirm(ctx context.Context, ref string, finalAmount int64) (*ConfirmResult, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Confirm", trace.WithAttributes(attribute.String("payment.ref", ref)))
	defer span.End()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, validationf("payment reference is required")
	}
	if finalAmount <= 0 {
		return nil, validationf("amount must be greater than 0")
	}

	token := newClaimToken()
	now := l.now()
	var claimed bool
	c, event, applied, err := l.contributions.ConfirmContribution(ctx, ref, finalAmount, now, func(e *models.Event) bool {
		claimed = l.lifecycle.claim(e, token, triggerFunded, now)
		return claimed
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("applied", applied), attribute.String("event.id", event.ID.Hex()))

	if !applied {
		l.log.Info("duplicate confirmation ignored", "payment_ref", ref, "event_id", event.ID.Hex())
		// A previous attempt may have confirmed the payment but failed to
		// finish the completion.
		event, err = l.lifecycle.settle(ctx, event)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Contribution: c, Event: event, Applied: false}, nil
	}

	l.log.Info("contribution confirmed", "payment_ref", ref, "event_id", event.ID.Hex(),
		"amount", finalAmount, "current_amount", event.CurrentAmount, "target_amount", event.TargetAmount)

	if claimed {
		if event, err = l.lifecycle.finish(ctx, event, token, triggerFunded); err != nil {
			return nil, err
		}
	}
	return &ConfirmResult{Contribution: c, Event: event, Applied: true}, nil
}

// Fail marks a pending contribution failed. The event total is untouched.
func (l *Ledger) Fail(ctx context.Context, ref, reason string) (*models.Contribution, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, validationf("payment reference is required")
	}
	c, applied, err := l.contributions.FailContribution(ctx, ref, strings.TrimSpace(reason), l.now())
	if err != nil {
		return nil, err
	}
	if !applied && c.Status == models.ContributionConfirmed {
		return nil, invalidStatef("payment %s is already confirmed", ref)
	}
	return c, nil
}

func (l *Ledger) Get(ctx context.Context, ref string) (*models.Contribution, error) {
	return l.contributions.GetContributionByRef(ctx, ref)
}

func (l *Ledger) List(ctx context.Context, eventID primitive.ObjectID) ([]models.Contribution, error) {
	return l.contributions.ListContributions(ctx, eventID)
}
