// Package processor applies one simulation step to a user: a live tick or
// the offline catch-up run at session start.
package processor

import (
	"time"

	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/simulation/accrual"
	"github.com/andymarkow/qvasun/internal/simulation/lifecycle"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultNegligible is the smallest coin delta worth committing on a tick.
var DefaultNegligible = decimal.RequireFromString("0.01")

// Outcome describes what a step did to the user.
type Outcome struct {
	Commit      bool
	Earned      decimal.Decimal
	Transitions []lifecycle.Transition
	Completed   []string
	Events      []notify.Event
}

type Processor struct {
	log        *zap.Logger
	calc       *accrual.Calculator
	machine    *lifecycle.Machine
	negligible decimal.Decimal
}

type Config struct {
	logger     *zap.Logger
	negligible decimal.Decimal
}

type Option func(c *Config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithNegligible(threshold decimal.Decimal) Option {
	return func(c *Config) {
		c.negligible = threshold
	}
}

func New(calc *accrual.Calculator, machine *lifecycle.Machine, opts ...Option) *Processor {
	cfg := &Config{
		logger:     zap.NewNop(),
		negligible: DefaultNegligible,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Processor{
		log:        cfg.logger.With(zap.String("module", "processor")),
		calc:       calc,
		machine:    machine,
		negligible: cfg.negligible,
	}
}

func (p *Processor) Negligible() decimal.Decimal {
	return p.negligible
}

// Tick advances orders and accrues investments over one tick period. When no
// order moved, no investment matured and the coins earned do not exceed the
// negligible threshold, u is left untouched and Commit is false.
func (p *Processor) Tick(u *users.User, now time.Time, period time.Duration) Outcome {
	ords, trs := p.machine.AdvanceAll(u.Orders(), now)
	res := p.calc.Apply(u.Investments(), now, period)

	out := Outcome{
		Earned:      res.Earned,
		Transitions: trs,
		Completed:   res.Completed,
	}

	if len(trs) == 0 && !res.Changed() && !res.Earned.GreaterThan(p.negligible) {
		return out
	}

	p.commit(u, ords, res, now)

	out.Commit = true
	out.Events = append(transitionEvents(trs), maturityEvents(res, now)...)

	return out
}

// CatchUp applies the time elapsed since the user was last seen in a single
// step. Earnings above the negligible threshold produce one summary event.
// The last-seen time is always advanced.
func (p *Processor) CatchUp(u *users.User, now time.Time) Outcome {
	var elapsed time.Duration

	if lastSeen, ok := u.LastSeenAt(); ok {
		elapsed = now.Sub(lastSeen)
	}

	if elapsed < 0 {
		p.log.Warn("Last seen time is in the future, catch-up skipped", zap.Duration("elapsed", elapsed))

		elapsed = 0
	}

	ords, trs := p.machine.AdvanceAll(u.Orders(), now)
	res := p.calc.Apply(u.Investments(), now, elapsed)

	p.commit(u, ords, res, now)

	out := Outcome{
		Commit:      true,
		Earned:      res.Earned,
		Transitions: trs,
		Completed:   res.Completed,
		Events:      transitionEvents(trs),
	}

	if res.Earned.GreaterThan(p.negligible) {
		out.Events = append(out.Events, notify.NewEvent(notify.SeveritySuccess, now,
			"You earned %s coins while away", res.Earned.StringFixed(2)))
	}

	out.Events = append(out.Events, maturityEvents(res, now)...)

	p.log.Info("Catch-up applied",
		zap.Duration("elapsed", elapsed),
		zap.String("earned", res.Earned.String()),
		zap.Int("transitions", len(trs)),
	)

	return out
}

func (p *Processor) commit(u *users.User, ords []orders.Order, res accrual.Result, now time.Time) {
	u.SetOrders(ords)
	u.SetInvestments(res.Investments)
	u.CreditCoins(res.Earned)
	u.Touch(now)
}

func maturityEvents(res accrual.Result, now time.Time) []notify.Event {
	evts := make([]notify.Event, 0, len(res.Completed))
	for _, id := range res.Completed {
		evts = append(evts, notify.NewEvent(notify.SeveritySuccess, now, "Investment %s has matured", id))
	}

	return evts
}

func transitionEvents(trs []lifecycle.Transition) []notify.Event {
	evts := make([]notify.Event, 0, len(trs))

	for _, tr := range trs {
		switch tr.To {
		case orders.OrderStatusShipped:
			evts = append(evts, notify.NewEvent(notify.SeverityInfo, tr.At, "Order %s has been shipped", tr.OrderID))
		case orders.OrderStatusDelivered:
			evts = append(evts, notify.NewEvent(notify.SeveritySuccess, tr.At, "Order %s was delivered", tr.OrderID))
		}
	}

	return evts
}
