package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusFailed     OrderStatus = "failed"
)

func ParseStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled, StatusFailed:
		return st, true
	}
	return "", false
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether checkout may move an order from one status
// to another. Staying in place is always allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no checkout transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// InitialStatus is pending for cash on delivery and processing for online
// payment.
func InitialStatus(m payment.Method) OrderStatus {
	if m == payment.MethodOnline {
		return StatusProcessing
	}
	return StatusPending
}

type ShippingInfo struct {
	Name    string `json:"shipping_name"`
	Address string `json:"shipping_address"`
	Phone   string `json:"shipping_phone"`
	Email   string `json:"shipping_email"`
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCharge decimal.Decimal `json:"shipping_charge"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         OrderStatus     `json:"status"`
	ShippingInfo
	PaymentMethod payment.Method   `json:"payment_method"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Items         []OrderItem      `json:"items"`
	Payment       *payment.Payment `json:"payment,omitempty"`
}

type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ItemID       int64           `json:"item_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// NewOrder builds a pending or processing order from a priced quote.
func NewOrder(number string, userID int64, q Quote, method payment.Method, ship ShippingInfo, now time.Time) Order {
	items := make([]OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, OrderItem{
			ItemID:       l.ItemID,
			ProductName:  l.Name,
			ProductPrice: l.Price,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal,
		})
	}
	return Order{
		OrderNumber:    number,
		UserID:         userID,
		Subtotal:       q.Subtotal,
		Tax:            q.Tax,
		ShippingCharge: q.ShippingCharge,
		TotalAmount:    q.Total,
		Status:         InitialStatus(method),
		ShippingInfo:   ship,
		PaymentMethod:  method,
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          items,
	}
}

type TransitionError struct {
	From, To OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

func (o *Order) TransitionTo(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}
	if o.Status != to {
		o.Status = to
		o.UpdatedAt = now
	}
	return nil
}

// ForceStatus sets the status without consulting the transition table.
func (o *Order) ForceStatus(to OrderStatus, now time.Time) {
	if o.Status != to {
		o.Status = to
		o.UpdatedAt = now
	}
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXX from the creation date and
// the first four bytes of id.
func NewOrderNumber(now time.Time, id uuid.UUID) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(id[:4])))
}
