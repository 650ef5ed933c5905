package application

import (
	"context"
	"time"

	catalog "github.com/dmehra2102/checkout-service/internal/catalog/domain"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
)

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CatalogLookup interface {
	Lookup(ctx context.Context, ids []int64) (map[int64]catalog.Item, error)
}

type OrderRepository interface {
	// Create inserts o and its items, filling in generated ids.
	Create(ctx context.Context, o *domain.Order) error
	// Get loads the order with its items and payment.
	Get(ctx context.Context, id int64) (domain.Order, error)
	// GetForUpdate loads the order with its items and locks the order row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, at time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
}

type EventRecorder interface {
	Append(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error
}
