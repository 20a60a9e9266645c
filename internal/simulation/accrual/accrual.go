// Package accrual computes coin returns of investments over elapsed time.
package accrual

import (
	"time"

	"github.com/andymarkow/qvasun/internal/domain/coins"
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const Day = 24 * time.Hour

var (
	dayMillis = decimal.NewFromInt(Day.Milliseconds())
	hundred   = decimal.NewFromInt(100)
)

// Earned returns the coins earned by amount invested at dailyROIPercent over
// elapsed. The return is linear and does not compound. Non-positive elapsed
// earns nothing.
func Earned(amount, dailyROIPercent decimal.Decimal, elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 || !amount.IsPositive() || !dailyROIPercent.IsPositive() {
		return decimal.Zero
	}

	// amount * rate/100 * elapsed/day * coins.PerUnit, divided once at the end.
	numerator := amount.
		Mul(dailyROIPercent).
		Mul(decimal.NewFromInt(elapsed.Milliseconds())).
		Mul(coins.PerUnit)

	return numerator.Div(hundred.Mul(dayMillis))
}

// Result is the outcome of one accrual pass.
type Result struct {
	Investments []investments.Investment
	Earned      decimal.Decimal
	Completed   []string
}

// Changed reports whether the pass modified any investment status.
func (r Result) Changed() bool {
	return len(r.Completed) > 0
}

type Calculator struct {
	log      *zap.Logger
	catalog  *plans.Catalog
	maturity time.Duration
}

type Config struct {
	logger   *zap.Logger
	maturity time.Duration
}

type Option func(c *Config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaturity sets how long an investment keeps accruing. Zero means forever.
func WithMaturity(d time.Duration) Option {
	return func(c *Config) {
		c.maturity = d
	}
}

func New(catalog *plans.Catalog, opts ...Option) *Calculator {
	cfg := &Config{
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	maturity := cfg.maturity
	if maturity < 0 {
		maturity = 0
	}

	return &Calculator{
		log:      cfg.logger.With(zap.String("module", "accrual")),
		catalog:  catalog,
		maturity: maturity,
	}
}

// Apply accrues every active investment over the window (now-elapsed, now],
// clipped to the time each investment has existed.
// The input slice is not modified; updated copies are returned together with
// the aggregate coins earned, which the caller credits once.
func (c *Calculator) Apply(invs []investments.Investment, now time.Time, elapsed time.Duration) Result {
	if elapsed < 0 {
		c.log.Warn("Negative elapsed time clamped to zero", zap.Duration("elapsed", elapsed))

		elapsed = 0
	}

	res := Result{
		Investments: make([]investments.Investment, len(invs)),
		Earned:      decimal.Zero,
	}

	copy(res.Investments, invs)

	for i := range res.Investments {
		inv := &res.Investments[i]

		if !inv.IsActive() {
			continue
		}

		rate, ok := c.catalog.Rate(inv.PlanID())
		if !ok {
			c.log.Warn("Unknown plan, investment skipped",
				zap.String("investment_id", inv.ID()),
				zap.String("plan_id", inv.PlanID()),
			)

			continue
		}

		window, matured := c.window(inv, now, elapsed)

		earned := Earned(inv.Amount(), rate, window)
		inv.AddEarnedCoins(earned)
		res.Earned = res.Earned.Add(earned)

		if matured {
			inv.Complete()
			res.Completed = append(res.Completed, inv.ID())
		}
	}

	return res
}

// window returns the part of (now-elapsed, now] during which inv accrues and
// whether inv reaches maturity by now. Time before the investment started
// never counts.
func (c *Calculator) window(inv *investments.Investment, now time.Time, elapsed time.Duration) (time.Duration, bool) {
	from := now.Add(-elapsed)
	if from.Before(inv.StartedAt()) {
		from = inv.StartedAt()
	}

	to := now
	matured := false

	if c.maturity > 0 {
		maturesAt := inv.StartedAt().Add(c.maturity)
		if !now.Before(maturesAt) {
			to = maturesAt
			matured = true
		}
	}

	window := to.Sub(from)
	if window < 0 {
		window = 0
	}

	return window, matured
}
