package gateway

import (
	"context"
	"log/slog"

	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/domain"
)

// Stub approves every online charge. No real provider is called.
type Stub struct {
	log *slog.Logger
}

func NewStub(log *slog.Logger) *Stub {
	return &Stub{log: log}
}

func (g *Stub) Charge(ctx context.Context, o order.Order, p domain.Payment, details map[string]any) (application.ChargeResult, error) {
	g.log.Debug("stub gateway charge approved", "order_id", o.ID, "amount", p.Amount.StringFixed(2))
	return application.ChargeResult{Approved: true}, nil
}
