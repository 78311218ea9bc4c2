package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

const defaultClaimTTL = 2 * time.Minute

// Options tunes the funding lifecycle. Built once at startup.
type Options struct {
	// AllowPartialCheckout lets a creator check out an active event before
	// the target is met.
	AllowPartialCheckout bool
	// ClaimTTL is how long a completion claim blocks other completers before
	// it is treated as abandoned.
	ClaimTTL time.Duration
	// Now is the clock; defaults to time.Now in UTC.
	Now    func() time.Time
	Logger *slog.Logger
}

type Deps struct {
	Events        EventStore
	Contributions ContributionStore
	Orders        OrderSink
	Catalog       Catalog
	// Products is optional; when set it also serves as Catalog.
	Products ProductStore
	Notifier Notifier
}

// App groups the lifecycle services that share one set of collaborators.
type App struct {
	Events    *Events
	Ledger    *Ledger
	Lifecycle *Lifecycle
	Orders    *Orders
	Products  *Products
}

func New(deps Deps, opts Options) *App {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(ctx context.Context, kind models.NotificationKind, payload models.NotificationPayload) error {
			return nil
		})
	}

	if deps.Catalog == nil && deps.Products != nil {
		deps.Catalog = deps.Products
	}

	tracer := otel.Tracer("github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services")

	orders := &Orders{sink: deps.Orders, now: opts.Now}
	lifecycle := &Lifecycle{
		events:   deps.Events,
		orders:   orders,
		notifier: deps.Notifier,
		opts:     opts,
		log:      opts.Logger.With("component", "lifecycle"),
		tracer:   tracer,
	}
	return &App{
		Events: &Events{
			store:     deps.Events,
			catalog:   deps.Catalog,
			lifecycle: lifecycle,
			now:       opts.Now,
			tracer:    tracer,
		},
		Ledger: &Ledger{
			contributions: deps.Contributions,
			events:        deps.Events,
			lifecycle:     lifecycle,
			now:           opts.Now,
			log:           opts.Logger.With("component", "ledger"),
			tracer:        tracer,
		},
		Lifecycle: lifecycle,
		Orders:    orders,
		Products:  &Products{store: deps.Products, now: opts.Now},
	}
}
