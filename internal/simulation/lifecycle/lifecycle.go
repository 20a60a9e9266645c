// Package lifecycle moves orders through processing, shipping and delivery
// based on their age.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/orders"
)

const (
	DefaultShipAfter    = 30 * time.Second
	DefaultDeliverAfter = 90 * time.Second
)

var ErrInvalidThresholds = errors.New("invalid order lifecycle thresholds")

// Transition is one status change taken by an order.
type Transition struct {
	OrderID string
	From    orders.OrderStatus
	To      orders.OrderStatus
	At      time.Time
}

type Machine struct {
	shipAfter    time.Duration
	deliverAfter time.Duration
}

// NewMachine returns a machine that ships orders older than shipAfter and
// delivers orders older than deliverAfter. Both ages are measured from order
// creation.
func NewMachine(shipAfter, deliverAfter time.Duration) (*Machine, error) {
	if shipAfter < 0 || deliverAfter < 0 {
		return nil, fmt.Errorf("%w: thresholds must not be negative", ErrInvalidThresholds)
	}

	if shipAfter > deliverAfter {
		return nil, fmt.Errorf("%w: ship after %s exceeds deliver after %s",
			ErrInvalidThresholds, shipAfter, deliverAfter)
	}

	return &Machine{
		shipAfter:    shipAfter,
		deliverAfter: deliverAfter,
	}, nil
}

func (m *Machine) ShipAfter() time.Duration {
	return m.shipAfter
}

func (m *Machine) DeliverAfter() time.Duration {
	return m.deliverAfter
}

// Advance evaluates ord at now and applies every transition it qualifies
// for, checking the shipping threshold before the delivery one. Orders that
// are already delivered are left untouched.
func (m *Machine) Advance(ord *orders.Order, now time.Time) []Transition {
	var trs []Transition

	age := now.Sub(ord.CreatedAt())

	if ord.Status() == orders.OrderStatusProcessing && age > m.shipAfter {
		if err := ord.Ship(); err == nil {
			trs = append(trs, Transition{
				OrderID: ord.ID(),
				From:    orders.OrderStatusProcessing,
				To:      orders.OrderStatusShipped,
				At:      now,
			})
		}
	}

	if ord.Status() == orders.OrderStatusShipped && age > m.deliverAfter {
		if err := ord.Deliver(now); err == nil {
			trs = append(trs, Transition{
				OrderID: ord.ID(),
				From:    orders.OrderStatusShipped,
				To:      orders.OrderStatusDelivered,
				At:      now,
			})
		}
	}

	return trs
}

// AdvanceAll evaluates ords in list order. It returns updated copies and the
// transitions taken, in the order they happened.
func (m *Machine) AdvanceAll(ords []orders.Order, now time.Time) ([]orders.Order, []Transition) {
	out := make([]orders.Order, 0, len(ords))

	var trs []Transition

	for i := range ords {
		ord := ords[i].Clone()
		trs = append(trs, m.Advance(&ord, now)...)
		out = append(out, ord)
	}

	return out, trs
}
