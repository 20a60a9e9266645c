package router

import (
	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/server/handlers"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	log     *zap.Logger
	catalog *plans.Catalog
	feed    *notify.Feed
	clock   clock.Clock
}

func NewRouter(store storage.Storage, sess *session.Session, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:     zap.NewNop(),
		catalog: plans.Default(),
		feed:    notify.NewFeed(notify.DefaultFeedSize),
		clock:   clock.Real{},
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
	)

	h := handlers.NewHandlers(store, sess,
		handlers.WithLogger(rOpts.log),
		handlers.WithCatalog(rOpts.catalog),
		handlers.WithFeed(rOpts.feed),
		handlers.WithClock(rOpts.clock),
	)

	r.Get("/ping", h.Ping)
	r.Get("/api/plans", h.GetPlans)

	r.Route("/api/user", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Get("/investments", h.GetUserInvestments)
		r.Post("/investments", h.CreateUserInvestment)
		r.Get("/orders", h.GetUserOrders)
		r.Post("/orders", h.CreateUserOrder)
		r.Post("/checkin", h.ClaimCheckIn)
		r.Post("/exchange", h.ExchangeCoins)
		r.Put("/withdrawal-address", h.SetWithdrawalAddress)
		r.Post("/withdrawals", h.CreateWithdrawal)
		r.Get("/notifications", h.GetNotifications)
		r.Post("/wheel", h.SpinWheel)
		r.Get("/card", h.GetCard)
		r.Post("/card", h.CreateCard)
		r.Post("/card/topup", h.TopUpCard)
		r.Post("/card/withdraw", h.WithdrawFromCard)
	})

	return r
}

type Option func(r *Options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

func WithCatalog(catalog *plans.Catalog) Option {
	return func(o *Options) {
		o.catalog = catalog
	}
}

// WithFeed sets the notification feed served by the API.
func WithFeed(feed *notify.Feed) Option {
	return func(o *Options) {
		o.feed = feed
	}
}

func WithClock(clk clock.Clock) Option {
	return func(o *Options) {
		o.clock = clk
	}
}
