//nolint:wrapcheck
package plans

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrPlanIDEmpty     = errors.New("plan id is empty")
	ErrPlanRateInvalid = errors.New("plan daily return must be positive")
	ErrPlanMinInvalid  = errors.New("plan minimum entry must not be negative")
	ErrPlanDuplicate   = errors.New("plan already exists in catalog")
)

// Plan is an immutable investment plan.
type Plan struct {
	id              string
	name            string
	minEntry        decimal.Decimal
	dailyROIPercent decimal.Decimal
	description     string
	color           string
}

func NewPlan(id, name string, minEntry, dailyROIPercent decimal.Decimal, description, color string) (*Plan, error) {
	if id == "" {
		return nil, ErrPlanIDEmpty
	}

	if !dailyROIPercent.IsPositive() {
		return nil, ErrPlanRateInvalid
	}

	if minEntry.IsNegative() {
		return nil, ErrPlanMinInvalid
	}

	return &Plan{
		id:              id,
		name:            name,
		minEntry:        minEntry,
		dailyROIPercent: dailyROIPercent,
		description:     description,
		color:           color,
	}, nil
}

func (p *Plan) ID() string {
	return p.id
}

func (p *Plan) Name() string {
	return p.name
}

func (p *Plan) MinEntry() decimal.Decimal {
	return p.minEntry
}

// DailyROIPercent is the daily return in percent, 0.5 meaning 0.5% per day.
func (p *Plan) DailyROIPercent() decimal.Decimal {
	return p.dailyROIPercent
}

func (p *Plan) Description() string {
	return p.description
}

func (p *Plan) Color() string {
	return p.color
}

// Catalog is an ordered, read-only set of plans.
type Catalog struct {
	plans []*Plan
	byID  map[string]*Plan
}

func NewCatalog(plans ...*Plan) (*Catalog, error) {
	c := &Catalog{
		plans: make([]*Plan, 0, len(plans)),
		byID:  make(map[string]*Plan, len(plans)),
	}

	for _, p := range plans {
		if _, ok := c.byID[p.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrPlanDuplicate, p.ID())
		}

		c.plans = append(c.plans, p)
		c.byID[p.ID()] = p
	}

	return c, nil
}

func (c *Catalog) Get(id string) (*Plan, bool) {
	p, ok := c.byID[id]

	return p, ok
}

// Rate returns the daily return percentage of the plan with the given id.
func (c *Catalog) Rate(id string) (decimal.Decimal, bool) {
	p, ok := c.byID[id]
	if !ok {
		return decimal.Zero, false
	}

	return p.dailyROIPercent, true
}

func (c *Catalog) List() []*Plan {
	out := make([]*Plan, len(c.plans))
	copy(out, c.plans)

	return out
}

func mustPlan(id, name, minEntry, rate, description, color string) *Plan {
	p, err := NewPlan(id, name, decimal.RequireFromString(minEntry), decimal.RequireFromString(rate), description, color)
	if err != nil {
		panic(err)
	}

	return p
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(
		mustPlan("local", "Almacén Local", "10", "0.5",
			"Inversión básica en infraestructura local.", "bg-slate-700"),
		mustPlan("regional", "Almacén Regional", "10", "0.8",
			"Expansión a provincias centrales.", "bg-solar-600"),
		mustPlan("mundial", "Almacén Mundial", "10", "1.2",
			"Participación en importaciones globales.", "bg-gradient-to-r from-purple-600 to-blue-600"),
	)
	if err != nil {
		panic(err)
	}

	return c
}
