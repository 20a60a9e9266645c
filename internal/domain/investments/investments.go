//nolint:wrapcheck
package investments

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/coins"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAmountNotPositive   = errors.New("investment amount must be positive")
	ErrAmountBelowMinimum  = errors.New("investment amount is below plan minimum entry")
	ErrInvestmentIDEmpty   = errors.New("investment id is empty")
	ErrInvestmentStatusBad = errors.New("investment status is invalid")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) String() string {
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvestmentStatusBad, s)
	}
}

type Investment struct {
	id            string
	planID        string
	planName      string
	amount        decimal.Decimal
	startedAt     time.Time
	dailyEarnings decimal.Decimal
	earnedCoins   decimal.Decimal
	status        Status
}

// NewInvestment commits amount into plan at now.
func NewInvestment(plan *plans.Plan, amount decimal.Decimal, now time.Time) (*Investment, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	if amount.LessThan(plan.MinEntry()) {
		return nil, fmt.Errorf("%w: %s < %s", ErrAmountBelowMinimum, amount, plan.MinEntry())
	}

	return &Investment{
		id:            "INV-" + uuid.New().String(),
		planID:        plan.ID(),
		planName:      plan.Name(),
		amount:        amount,
		startedAt:     now,
		dailyEarnings: DailyEarnings(amount, plan.DailyROIPercent()),
		earnedCoins:   decimal.Zero,
		status:        StatusActive,
	}, nil
}

// RestoreInvestment rebuilds an investment from persisted fields.
func RestoreInvestment(
	id, planID, planName string,
	amount decimal.Decimal,
	startedAt time.Time,
	dailyEarnings, earnedCoins decimal.Decimal,
	status Status,
) (*Investment, error) {
	if id == "" {
		return nil, ErrInvestmentIDEmpty
	}

	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	return &Investment{
		id:            id,
		planID:        planID,
		planName:      planName,
		amount:        amount,
		startedAt:     startedAt,
		dailyEarnings: dailyEarnings,
		earnedCoins:   earnedCoins,
		status:        status,
	}, nil
}

// DailyEarnings is the informational daily estimate in whole coins.
func DailyEarnings(amount, dailyROIPercent decimal.Decimal) decimal.Decimal {
	return coins.FromCurrency(amount.Mul(dailyROIPercent).Div(decimal.NewFromInt(100))).Round(0)
}

func (i *Investment) ID() string {
	return i.id
}

func (i *Investment) PlanID() string {
	return i.planID
}

func (i *Investment) PlanName() string {
	return i.planName
}

func (i *Investment) Amount() decimal.Decimal {
	return i.amount
}

func (i *Investment) StartedAt() time.Time {
	return i.startedAt
}

func (i *Investment) DailyEarnings() decimal.Decimal {
	return i.dailyEarnings
}

func (i *Investment) EarnedCoins() decimal.Decimal {
	return i.earnedCoins
}

func (i *Investment) Status() Status {
	return i.status
}

func (i *Investment) IsActive() bool {
	return i.status == StatusActive
}

// AddEarnedCoins increases cumulative earnings. Non-positive amounts are ignored
// so the total never decreases.
func (i *Investment) AddEarnedCoins(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	i.earnedCoins = i.earnedCoins.Add(amount)
}

func (i *Investment) Complete() {
	i.status = StatusCompleted
}
