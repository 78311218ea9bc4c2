// Package notifications delivers lifecycle signals raised by the funding
// state machine. Every implementation satisfies services.Notifier.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

// Message renders the human readable line for a signal.
func Message(kind models.NotificationKind, p models.NotificationPayload) string {
	switch kind {
	case models.NotifyTargetReached:
		return fmt.Sprintf("%q reached its target of %s.", p.Title, FormatAmount(p.TargetAmount, p.Currency))
	case models.NotifyCheckoutReady:
		return fmt.Sprintf("%q is ready for checkout with %s raised.", p.Title, FormatAmount(p.CurrentAmount, p.Currency))
	case models.NotifyCompleted:
		return fmt.Sprintf("%q is complete. Order %s has been placed.", p.Title, p.OrderID.Hex())
	case models.NotifyCancelled:
		if p.Reason != "" {
			return fmt.Sprintf("%q was cancelled: %s", p.Title, p.Reason)
		}
		return fmt.Sprintf("%q was cancelled.", p.Title)
	}
	return fmt.Sprintf("%q: %s", p.Title, kind)
}

// FormatAmount prints minor units as a decimal amount.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}

// Log writes each signal to the structured log.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notifications")}
}

func (n *Log) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	n.log.InfoContext(ctx, "lifecycle notification",
		"kind", string(kind),
		"event_id", p.EventID.Hex(),
		"order_id", p.OrderID.Hex(),
		"current_amount", p.CurrentAmount,
		"target_amount", p.TargetAmount,
	)
	return nil
}

// Fanout delivers to every notifier, even after one fails.
type Fanout struct {
	notifiers []services.Notifier
	log       *slog.Logger
}

func NewFanout(log *slog.Logger, notifiers ...services.Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, log: log.With("component", "notifications")}
}

func (f *Fanout) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, kind, p); err != nil {
			f.log.WarnContext(ctx, "notifier failed", "kind", string(kind), "event_id", p.EventID.Hex(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ services.Notifier = (*Log)(nil)
	_ services.Notifier = (*Fanout)(nil)
)
