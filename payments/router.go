package payments

import (
	"context"
	"errors"
	"log/slog"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

// Result reports what a signal did.
type Result struct {
	Duplicate bool `json:"duplicate"`
	// Applied is false when the ledger had already seen the reference.
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
}

// Router applies payment signals to the ledger.
type Router struct {
	ledger *services.Ledger
	dedupe Dedupe
	log    *slog.Logger
}

func NewRouter(log *slog.Logger, ledger *services.Ledger, dedupe Dedupe) *Router {
	if dedupe == nil {
		dedupe = NewMemoryDedupe()
	}
	return &Router{ledger: ledger, dedupe: dedupe, log: log}
}

func (r *Router) Handle(ctx context.Context, s Signal) (*Result, error) {
	s = s.normalized()
	if s.PaymentReference == "" {
		return nil, &services.Error{Kind: services.KindValidation, Message: "payment reference is required"}
	}

	key := s.dedupeKey()
	seen, err := r.dedupe.Seen(ctx, key)
	if err != nil {
		r.log.Warn("dedupe lookup failed, applying signal", "payment_ref", s.PaymentReference, "err", err)
	}
	if seen {
		r.log.Info("duplicate payment signal skipped", "payment_ref", s.PaymentReference, "outcome", string(s.Outcome))
		return &Result{Duplicate: true}, nil
	}

	var res *Result
	switch s.Outcome {
	case OutcomeConfirmed:
		res, err = r.confirm(ctx, s)
	case OutcomeFailed:
		res, err = r.fail(ctx, s)
	default:
		return nil, &services.Error{Kind: services.KindValidation, Message: "unknown payment outcome " + string(s.Outcome)}
	}
	if err != nil {
		return nil, err
	}

	if err := r.dedupe.Mark(ctx, key); err != nil {
		r.log.Warn("could not record payment signal", "payment_ref", s.PaymentReference, "err", err)
	}
	return res, nil
}

// recorded returns the contribution already filed under the signal's
// reference, or nil. A signal naming a different event is rejected.
func (r *Router) recorded(ctx context.Context, s Signal) (*models.Contribution, error) {
	c, err := r.ledger.Get(ctx, s.PaymentReference)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.EventID.IsZero() && c.EventID != s.EventID {
		r.log.Warn("payment signal names another event", "payment_ref", s.PaymentReference,
			"signal_event_id", s.EventID.Hex(), "event_id", c.EventID.Hex())
		return nil, &services.Error{Kind: services.KindValidation, Message: "payment reference " + s.PaymentReference + " belongs to another event"}
	}
	return c, nil
}

func (r *Router) confirm(ctx context.Context, s Signal) (*Result, error) {
	existing, err := r.recorded(ctx, s)
	if err != nil {
		return nil, err
	}
	amount := s.Amount
	if amount <= 0 {
		if existing == nil {
			return nil, &services.Error{Kind: services.KindValidation, Message: "amount is required for an unknown payment reference"}
		}
		amount = existing.Amount
	}

	out, err := r.ledger.Confirm(ctx, s.PaymentReference, amount)
	if errors.Is(err, services.ErrNotFound) && !s.EventID.IsZero() {
		// The provider reported a payment the client never recorded.
		if _, recErr := r.ledger.Record(ctx, services.RecordInput{
			EventID:         s.EventID,
			ContributorName: s.ContributorName,
			Amount:          amount,
			Method:          s.Method,
			PaymentRef:      s.PaymentReference,
		}); recErr != nil {
			return nil, recErr
		}
		out, err = r.ledger.Confirm(ctx, s.PaymentReference, amount)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Applied: out.Applied, Status: string(out.Event.Status)}, nil
}

func (r *Router) fail(ctx context.Context, s Signal) (*Result, error) {
	if _, err := r.recorded(ctx, s); err != nil {
		return nil, err
	}
	c, err := r.ledger.Fail(ctx, s.PaymentReference, s.Reason)
	if err != nil {
		return nil, err
	}
	return &Result{Applied: true, Status: string(c.Status)}, nil
}
