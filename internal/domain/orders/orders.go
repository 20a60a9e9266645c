//nolint:wrapcheck
package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderIDEmpty          = errors.New("order id is empty")
	ErrOrderItemsEmpty       = errors.New("order has no items")
	ErrOrderItemInvalid      = errors.New("order item is invalid")
	ErrOrderStatusInvalid    = errors.New("order status is invalid")
	ErrOrderTransitionDenied = errors.New("order status transition is not allowed")
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "procesando"
	OrderStatusShipped    OrderStatus = "enviado"
	OrderStatusDelivered  OrderStatus = "entregado"
)

func (s OrderStatus) String() string {
	return string(s)
}

func ParseOrderStatus(status string) (OrderStatus, error) {
	switch OrderStatus(status) {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return OrderStatus(status), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrOrderStatusInvalid, status)
	}
}

// Item is a purchased line. Its content is opaque to the lifecycle.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) validate() error {
	if i.ProductID == "" || i.Quantity <= 0 || i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: %q", ErrOrderItemInvalid, i.ProductID)
	}

	return nil
}

type Order struct {
	id             string
	createdAt      time.Time
	items          []Item
	total          decimal.Decimal
	status         OrderStatus
	deliveredAt    time.Time
	trackingNumber string
}

// NewOrder creates an order in the processing state.
func NewOrder(items []Item, total decimal.Decimal, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrOrderItemsEmpty
	}

	for _, it := range items {
		if err := it.validate(); err != nil {
			return nil, err
		}
	}

	ref := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))

	return &Order{
		id:             "ORD-" + ref[:10],
		createdAt:      now,
		items:          append([]Item(nil), items...),
		total:          total,
		status:         OrderStatusProcessing,
		trackingNumber: "QS" + ref[10:22],
	}, nil
}

// RestoreOrder rebuilds an order from persisted fields. A zero deliveredAt
// means the order has not been delivered.
func RestoreOrder(
	id string,
	createdAt time.Time,
	items []Item,
	total decimal.Decimal,
	status OrderStatus,
	deliveredAt time.Time,
	trackingNumber string,
) (*Order, error) {
	if id == "" {
		return nil, ErrOrderIDEmpty
	}

	if _, err := ParseOrderStatus(string(status)); err != nil {
		return nil, err
	}

	return &Order{
		id:             id,
		createdAt:      createdAt,
		items:          append([]Item(nil), items...),
		total:          total,
		status:         status,
		deliveredAt:    deliveredAt,
		trackingNumber: trackingNumber,
	}, nil
}

func (o *Order) ID() string {
	return o.id
}

func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Order) Items() []Item {
	return append([]Item(nil), o.items...)
}

func (o *Order) Total() decimal.Decimal {
	return o.total
}

func (o *Order) Status() OrderStatus {
	return o.status
}

func (o *Order) DeliveredAt() (time.Time, bool) {
	return o.deliveredAt, !o.deliveredAt.IsZero()
}

func (o *Order) TrackingNumber() string {
	return o.trackingNumber
}

// Ship moves a processing order to shipped.
func (o *Order) Ship() error {
	if o.status != OrderStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrOrderTransitionDenied, o.status, OrderStatusShipped)
	}

	o.status = OrderStatusShipped

	return nil
}

// Deliver moves a shipped order to delivered and stamps the delivery time.
func (o *Order) Deliver(now time.Time) error {
	if o.status != OrderStatusShipped {
		return fmt.Errorf("%w: %s -> %s", ErrOrderTransitionDenied, o.status, OrderStatusDelivered)
	}

	o.status = OrderStatusDelivered
	o.deliveredAt = now

	return nil
}

// Clone returns a copy that shares no mutable state with o.
func (o *Order) Clone() Order {
	c := *o
	c.items = append([]Item(nil), o.items...)

	return c
}
