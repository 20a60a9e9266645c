package users

import (
	"errors"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/withdrawals"
	"github.com/shopspring/decimal"
)

var ErrUserIDEmpty = errors.New("user id is empty")

// User is the aggregate root of everything the simulation touches: the
// wallet, investments, orders and the last time the session was seen.
type User struct {
	id                string
	name              string
	balance           balance.Balance
	investments       []investments.Investment
	orders            []orders.Order
	withdrawals       []withdrawals.Withdrawal
	withdrawalAddress string
	checkIn           CheckIn
	card              Card
	lastSeenAt        time.Time
}

// State is the flat, exported form of a User used to persist and restore it.
type State struct {
	ID                string
	Name              string
	Balance           balance.Balance
	Investments       []investments.Investment
	Orders            []orders.Order
	Withdrawals       []withdrawals.Withdrawal
	WithdrawalAddress string
	CheckIn           CheckIn
	Card              Card
	LastSeenAt        time.Time
}

func NewUser(id, name string, blnc balance.Balance) (*User, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	return &User{
		id:      id,
		name:    name,
		balance: blnc,
	}, nil
}

func RestoreUser(st State) (*User, error) {
	if err := ValidateID(st.ID); err != nil {
		return nil, err
	}

	u := &User{
		id:                st.ID,
		name:              st.Name,
		balance:           st.Balance,
		withdrawalAddress: st.WithdrawalAddress,
		checkIn:           st.CheckIn,
		card:              st.Card,
		lastSeenAt:        st.LastSeenAt,
	}

	u.SetInvestments(st.Investments)
	u.SetOrders(st.Orders)
	u.withdrawals = append([]withdrawals.Withdrawal(nil), st.Withdrawals...)

	return u, nil
}

func ValidateID(id string) error {
	if id == "" {
		return ErrUserIDEmpty
	}

	return nil
}

// State returns a deep copy of the user in exported form.
func (u *User) State() State {
	return State{
		ID:                u.id,
		Name:              u.name,
		Balance:           u.balance,
		Investments:       u.Investments(),
		Orders:            u.Orders(),
		Withdrawals:       u.Withdrawals(),
		WithdrawalAddress: u.withdrawalAddress,
		CheckIn:           u.checkIn,
		Card:              u.card,
		LastSeenAt:        u.lastSeenAt,
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c, _ := RestoreUser(u.State())

	return c
}

func (u *User) ID() string {
	return u.id
}

func (u *User) Name() string {
	return u.name
}

func (u *User) Balance() balance.Balance {
	return u.balance
}

func (u *User) Investments() []investments.Investment {
	return append([]investments.Investment(nil), u.investments...)
}

func (u *User) SetInvestments(invs []investments.Investment) {
	u.investments = append([]investments.Investment(nil), invs...)
}

func (u *User) Orders() []orders.Order {
	out := make([]orders.Order, 0, len(u.orders))
	for i := range u.orders {
		out = append(out, u.orders[i].Clone())
	}

	return out
}

func (u *User) SetOrders(ords []orders.Order) {
	u.orders = make([]orders.Order, 0, len(ords))
	for i := range ords {
		u.orders = append(u.orders, ords[i].Clone())
	}
}

func (u *User) Withdrawals() []withdrawals.Withdrawal {
	return append([]withdrawals.Withdrawal(nil), u.withdrawals...)
}

func (u *User) WithdrawalAddress() string {
	return u.withdrawalAddress
}

func (u *User) CheckIn() CheckIn {
	return u.checkIn
}

// LastSeenAt reports when the session was last active. ok is false on the
// first ever session.
func (u *User) LastSeenAt() (t time.Time, ok bool) {
	return u.lastSeenAt, !u.lastSeenAt.IsZero()
}

// Touch advances the last-seen time. It never moves backwards.
func (u *User) Touch(now time.Time) {
	if now.After(u.lastSeenAt) {
		u.lastSeenAt = now
	}
}

// CreditCoins adds coins to the wallet.
func (u *User) CreditCoins(amount decimal.Decimal) {
	u.balance.AddCoins(amount)
}

// PurgeDeliveredOrders drops delivered orders whose delivery happened before
// the cut-off and returns how many were removed.
func (u *User) PurgeDeliveredOrders(before time.Time) int {
	kept := u.orders[:0]
	removed := 0

	for _, ord := range u.orders {
		deliveredAt, ok := ord.DeliveredAt()
		if ord.Status() == orders.OrderStatusDelivered && ok && deliveredAt.Before(before) {
			removed++

			continue
		}

		kept = append(kept, ord)
	}

	u.orders = kept

	return removed
}
