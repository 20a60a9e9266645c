// Package dbmodels holds the flat persistence form of a user snapshot shared
// by the storage backends.
package dbmodels

import (
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/domain/withdrawals"
	"github.com/shopspring/decimal"
)

type User struct {
	ID                string          `msgpack:"id"`
	Name              string          `msgpack:"name"`
	USDT              decimal.Decimal `msgpack:"usdt"`
	Coins             decimal.Decimal `msgpack:"coins"`
	Withdrawable      decimal.Decimal `msgpack:"withdrawable"`
	WithdrawalAddress string          `msgpack:"withdrawal_address"`
	CheckInDate       string          `msgpack:"checkin_date"`
	CheckInStreak     int             `msgpack:"checkin_streak"`
	CardNumber        string          `msgpack:"card_number"`
	CardBalance       decimal.Decimal `msgpack:"card_balance"`
	CardIssuedAt      time.Time       `msgpack:"card_issued_at"`
	LastSeenAt        time.Time       `msgpack:"last_seen_at"`
	Investments       []Investment    `msgpack:"investments"`
	Orders            []Order         `msgpack:"orders"`
	Withdrawals       []Withdrawal    `msgpack:"withdrawals"`
}

type Investment struct {
	ID            string          `msgpack:"id"`
	PlanID        string          `msgpack:"plan_id"`
	PlanName      string          `msgpack:"plan_name"`
	Amount        decimal.Decimal `msgpack:"amount"`
	StartedAt     time.Time       `msgpack:"started_at"`
	DailyEarnings decimal.Decimal `msgpack:"daily_earnings"`
	EarnedCoins   decimal.Decimal `msgpack:"earned_coins"`
	Status        string          `msgpack:"status"`
}

type Order struct {
	ID             string          `msgpack:"id"`
	CreatedAt      time.Time       `msgpack:"created_at"`
	Items          []OrderItem     `msgpack:"items"`
	Total          decimal.Decimal `msgpack:"total"`
	Status         string          `msgpack:"status"`
	DeliveredAt    time.Time       `msgpack:"delivered_at"`
	TrackingNumber string          `msgpack:"tracking_number"`
}

type OrderItem struct {
	ProductID string          `json:"product_id" msgpack:"product_id"`
	Name      string          `json:"name" msgpack:"name"`
	Quantity  int             `json:"quantity" msgpack:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" msgpack:"unit_price"`
}

type Withdrawal struct {
	Address     string          `msgpack:"address"`
	Amount      decimal.Decimal `msgpack:"amount"`
	ProcessedAt time.Time       `msgpack:"processed_at"`
}

// FromUser flattens usr.
func FromUser(usr *users.User) User {
	st := usr.State()

	out := User{
		ID:                st.ID,
		Name:              st.Name,
		USDT:              st.Balance.USDT(),
		Coins:             st.Balance.Coins(),
		Withdrawable:      st.Balance.Withdrawable(),
		WithdrawalAddress: st.WithdrawalAddress,
		CheckInDate:       st.CheckIn.LastDate,
		CheckInStreak:     st.CheckIn.Streak,
		CardNumber:        st.Card.Number,
		CardBalance:       st.Card.Balance,
		CardIssuedAt:      st.Card.IssuedAt,
		LastSeenAt:        st.LastSeenAt,
		Investments:       make([]Investment, 0, len(st.Investments)),
		Orders:            make([]Order, 0, len(st.Orders)),
		Withdrawals:       make([]Withdrawal, 0, len(st.Withdrawals)),
	}

	for i := range st.Investments {
		inv := &st.Investments[i]

		out.Investments = append(out.Investments, Investment{
			ID:            inv.ID(),
			PlanID:        inv.PlanID(),
			PlanName:      inv.PlanName(),
			Amount:        inv.Amount(),
			StartedAt:     inv.StartedAt(),
			DailyEarnings: inv.DailyEarnings(),
			EarnedCoins:   inv.EarnedCoins(),
			Status:        inv.Status().String(),
		})
	}

	for i := range st.Orders {
		ord := &st.Orders[i]
		deliveredAt, _ := ord.DeliveredAt()

		items := make([]OrderItem, 0, len(ord.Items()))
		for _, it := range ord.Items() {
			items = append(items, OrderItem(it))
		}

		out.Orders = append(out.Orders, Order{
			ID:             ord.ID(),
			CreatedAt:      ord.CreatedAt(),
			Items:          items,
			Total:          ord.Total(),
			Status:         ord.Status().String(),
			DeliveredAt:    deliveredAt,
			TrackingNumber: ord.TrackingNumber(),
		})
	}

	for i := range st.Withdrawals {
		wd := &st.Withdrawals[i]

		out.Withdrawals = append(out.Withdrawals, Withdrawal{
			Address:     wd.Address(),
			Amount:      wd.Amount(),
			ProcessedAt: wd.ProcessedAt(),
		})
	}

	return out
}

// ToUser rebuilds the domain user from its flat form.
func (m *User) ToUser() (*users.User, error) {
	st := users.State{
		ID:                m.ID,
		Name:              m.Name,
		Balance:           balance.NewBalance(m.USDT, m.Coins, m.Withdrawable),
		WithdrawalAddress: m.WithdrawalAddress,
		CheckIn:           users.CheckIn{LastDate: m.CheckInDate, Streak: m.CheckInStreak},
		Card:              users.Card{Number: m.CardNumber, Balance: m.CardBalance, IssuedAt: m.CardIssuedAt},
		LastSeenAt:        m.LastSeenAt,
		Investments:       make([]investments.Investment, 0, len(m.Investments)),
		Orders:            make([]orders.Order, 0, len(m.Orders)),
		Withdrawals:       make([]withdrawals.Withdrawal, 0, len(m.Withdrawals)),
	}

	for _, mi := range m.Investments {
		inv, err := investments.RestoreInvestment(mi.ID, mi.PlanID, mi.PlanName, mi.Amount,
			mi.StartedAt, mi.DailyEarnings, mi.EarnedCoins, investments.Status(mi.Status))
		if err != nil {
			return nil, fmt.Errorf("investments.RestoreInvestment: %w", err)
		}

		st.Investments = append(st.Investments, *inv)
	}

	for _, mo := range m.Orders {
		items := make([]orders.Item, 0, len(mo.Items))
		for _, it := range mo.Items {
			items = append(items, orders.Item(it))
		}

		ord, err := orders.RestoreOrder(mo.ID, mo.CreatedAt, items, mo.Total,
			orders.OrderStatus(mo.Status), mo.DeliveredAt, mo.TrackingNumber)
		if err != nil {
			return nil, fmt.Errorf("orders.RestoreOrder: %w", err)
		}

		st.Orders = append(st.Orders, *ord)
	}

	for _, mw := range m.Withdrawals {
		wd, err := withdrawals.NewWithdrawal(mw.Address, mw.Amount, mw.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("withdrawals.NewWithdrawal: %w", err)
		}

		st.Withdrawals = append(st.Withdrawals, *wd)
	}

	usr, err := users.RestoreUser(st)
	if err != nil {
		return nil, fmt.Errorf("users.RestoreUser: %w", err)
	}

	return usr, nil
}
