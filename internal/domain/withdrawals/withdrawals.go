//nolint:wrapcheck
package withdrawals

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAddressEmpty      = errors.New("withdrawal address is empty")
	ErrAmountNotPositive = errors.New("withdrawal amount must be positive")
)

// Withdrawal records a request to move withdrawable USDT to an external
// BEP20 address.
type Withdrawal struct {
	address     string
	amount      decimal.Decimal
	processedAt time.Time
}

func NewWithdrawal(address string, amount decimal.Decimal, processedAt time.Time) (*Withdrawal, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	return &Withdrawal{
		address:     address,
		amount:      amount,
		processedAt: processedAt,
	}, nil
}

func ValidateAddress(address string) error {
	if address == "" {
		return ErrAddressEmpty
	}

	return nil
}

func (w *Withdrawal) Address() string {
	return w.address
}

func (w *Withdrawal) Amount() decimal.Decimal {
	return w.amount
}

func (w *Withdrawal) ProcessedAt() time.Time {
	return w.processedAt
}
