package balance

import (
	"errors"

	"github.com/andymarkow/qvasun/internal/domain/coins"
	"github.com/shopspring/decimal"
)

var (
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient USDT balance")
	ErrInsufficientCoins   = errors.New("insufficient coin balance")
	ErrNothingWithdrawable = errors.New("withdrawable balance is empty")
)

// Balance holds the wallet of a user: USDT, QvaCoins and the share of
// rewards already converted into withdrawable USDT.
type Balance struct {
	usdt         decimal.Decimal
	coins        decimal.Decimal
	withdrawable decimal.Decimal
}

func NewBalance(usdt, coins, withdrawable decimal.Decimal) Balance {
	return Balance{
		usdt:         usdt,
		coins:        coins,
		withdrawable: withdrawable,
	}
}

func (b Balance) USDT() decimal.Decimal {
	return b.usdt
}

func (b Balance) Coins() decimal.Decimal {
	return b.coins
}

func (b Balance) Withdrawable() decimal.Decimal {
	return b.withdrawable
}

func (b *Balance) SubUSDT(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	if b.usdt.LessThan(amount) {
		return ErrInsufficientFunds
	}

	b.usdt = b.usdt.Sub(amount)

	return nil
}

// AddUSDT credits USDT. Non-positive amounts are ignored.
func (b *Balance) AddUSDT(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	b.usdt = b.usdt.Add(amount)
}

// AddCoins credits coins. Non-positive amounts are ignored.
func (b *Balance) AddCoins(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	b.coins = b.coins.Add(amount)
}

func (b *Balance) SubCoins(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrAmountNotPositive
	}

	if b.coins.LessThan(amount) {
		return ErrInsufficientCoins
	}

	b.coins = b.coins.Sub(amount)

	return nil
}

// ExchangeCoins converts coins into withdrawable USDT at the fixed coin value.
func (b *Balance) ExchangeCoins(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}

	if err := b.SubCoins(amount); err != nil {
		return decimal.Zero, err
	}

	value := coins.ToCurrency(amount)
	b.withdrawable = b.withdrawable.Add(value)

	return value, nil
}

// DrainWithdrawable empties the withdrawable balance and returns what it held.
func (b *Balance) DrainWithdrawable() (decimal.Decimal, error) {
	if !b.withdrawable.IsPositive() {
		return decimal.Zero, ErrNothingWithdrawable
	}

	amount := b.withdrawable
	b.withdrawable = decimal.Zero

	return amount, nil
}
