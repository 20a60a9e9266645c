package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrCardExists            = errors.New("virtual card already issued")
	ErrNoCard                = errors.New("virtual card not issued")
	ErrCardFundsInsufficient = errors.New("insufficient card balance")
)

const (
	cardBIN      = "4288"
	cardValidity = 4 // years
)

// Card is the prepaid virtual card funded from the USDT wallet. The zero
// value means no card has been issued.
type Card struct {
	Number   string
	Balance  decimal.Decimal
	IssuedAt time.Time
}

func (c Card) Issued() bool {
	return c.Number != ""
}

func (c Card) ExpiresAt() time.Time {
	return c.IssuedAt.AddDate(cardValidity, 0, 0)
}

func newCardNumber() string {
	return fmt.Sprintf("%s%012d", cardBIN, uint64(uuid.New().ID()))
}

func (u *User) Card() Card {
	return u.card
}

// CreateCard issues an empty virtual card. A user holds at most one.
func (u *User) CreateCard(now time.Time) (Card, error) {
	if u.card.Issued() {
		return u.card, ErrCardExists
	}

	u.card = Card{
		Number:   newCardNumber(),
		Balance:  decimal.Zero,
		IssuedAt: now,
	}

	return u.card, nil
}

// TopUpCard moves amount USDT from the wallet onto the card.
func (u *User) TopUpCard(amount decimal.Decimal) (Card, error) {
	if !u.card.Issued() {
		return Card{}, ErrNoCard
	}

	if err := u.balance.SubUSDT(amount); err != nil {
		return u.card, fmt.Errorf("balance.SubUSDT: %w", err)
	}

	u.card.Balance = u.card.Balance.Add(amount)

	return u.card, nil
}

// WithdrawFromCard moves amount from the card back to the USDT wallet.
func (u *User) WithdrawFromCard(amount decimal.Decimal) (Card, error) {
	if !u.card.Issued() {
		return Card{}, ErrNoCard
	}

	if !amount.IsPositive() {
		return u.card, balance.ErrAmountNotPositive
	}

	if u.card.Balance.LessThan(amount) {
		return u.card, ErrCardFundsInsufficient
	}

	u.card.Balance = u.card.Balance.Sub(amount)
	u.balance.AddUSDT(amount)

	return u.card, nil
}
