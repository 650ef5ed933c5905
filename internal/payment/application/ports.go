package application

import (
	"context"
	"time"

	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/internal/payment/domain"
)

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderRepository interface {
	Get(ctx context.Context, id int64) (order.Order, error)
	GetForUpdate(ctx context.Context, id int64) (order.Order, error)
	UpdateStatus(ctx context.Context, id int64, status order.OrderStatus, at time.Time) error
}

type PaymentRepository interface {
	GetByOrderForUpdate(ctx context.Context, orderID int64) (domain.Payment, error)
	Update(ctx context.Context, p domain.Payment) error
}

type EventRecorder interface {
	Append(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error
}

// ChargeResult is the outcome reported by a payment gateway.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

type Gateway interface {
	Charge(ctx context.Context, o order.Order, p domain.Payment, details map[string]any) (ChargeResult, error)
}
