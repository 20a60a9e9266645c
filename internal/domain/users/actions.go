package users

import (
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/coins"
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/domain/withdrawals"
	"github.com/shopspring/decimal"
)

// Invest commits amount USDT into plan. The new investment goes first.
func (u *User) Invest(plan *plans.Plan, amount decimal.Decimal, now time.Time) (*investments.Investment, error) {
	inv, err := investments.NewInvestment(plan, amount, now)
	if err != nil {
		return nil, fmt.Errorf("investments.NewInvestment: %w", err)
	}

	if err := u.balance.SubUSDT(amount); err != nil {
		return nil, fmt.Errorf("balance.SubUSDT: %w", err)
	}

	u.investments = append([]investments.Investment{*inv}, u.investments...)

	return inv, nil
}

// Receipt summarizes the payment side of a checkout.
type Receipt struct {
	Total       decimal.Decimal
	CoinsUsed   decimal.Decimal
	Discount    decimal.Decimal
	Final       decimal.Decimal
	CoinsEarned decimal.Decimal
}

// Checkout pays for items, optionally applying coins as a capped discount,
// and places a new order in the processing state.
func (u *User) Checkout(items []orders.Item, useCoins bool, now time.Time) (*orders.Order, Receipt, error) {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}

	rcpt := Receipt{
		Total:     total,
		CoinsUsed: decimal.Zero,
		Discount:  decimal.Zero,
	}

	if useCoins {
		rcpt.CoinsUsed, rcpt.Discount = coins.Discount(total, u.balance.Coins())
	}

	rcpt.Final = total.Sub(rcpt.Discount)
	rcpt.CoinsEarned = coins.Earned(rcpt.Final)

	ord, err := orders.NewOrder(items, rcpt.Final, now)
	if err != nil {
		return nil, Receipt{}, fmt.Errorf("orders.NewOrder: %w", err)
	}

	blnc := u.balance

	if rcpt.Final.IsPositive() {
		if err := blnc.SubUSDT(rcpt.Final); err != nil {
			return nil, Receipt{}, fmt.Errorf("balance.SubUSDT: %w", err)
		}
	}

	if err := blnc.SubCoins(rcpt.CoinsUsed); err != nil {
		return nil, Receipt{}, fmt.Errorf("balance.SubCoins: %w", err)
	}

	blnc.AddCoins(rcpt.CoinsEarned)

	u.balance = blnc
	u.orders = append([]orders.Order{ord.Clone()}, u.orders...)

	return ord, rcpt, nil
}

// ExchangeCoins converts whole coins into withdrawable USDT.
func (u *User) ExchangeCoins(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.Equal(amount.Floor()) {
		return decimal.Zero, fmt.Errorf("%w: coins must be whole", ErrInvalidCoinAmount)
	}

	value, err := u.balance.ExchangeCoins(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance.ExchangeCoins: %w", err)
	}

	return value, nil
}

func (u *User) SetWithdrawalAddress(address string) error {
	if err := withdrawals.ValidateAddress(address); err != nil {
		return err //nolint:wrapcheck
	}

	u.withdrawalAddress = address

	return nil
}

// RequestWithdrawal sends the whole withdrawable balance to the saved address.
func (u *User) RequestWithdrawal(now time.Time) (*withdrawals.Withdrawal, error) {
	if err := withdrawals.ValidateAddress(u.withdrawalAddress); err != nil {
		return nil, err //nolint:wrapcheck
	}

	blnc := u.balance

	amount, err := blnc.DrainWithdrawable()
	if err != nil {
		return nil, fmt.Errorf("balance.DrainWithdrawable: %w", err)
	}

	wd, err := withdrawals.NewWithdrawal(u.withdrawalAddress, amount, now)
	if err != nil {
		return nil, fmt.Errorf("withdrawals.NewWithdrawal: %w", err)
	}

	u.balance = blnc
	u.withdrawals = append(u.withdrawals, *wd)

	return wd, nil
}
