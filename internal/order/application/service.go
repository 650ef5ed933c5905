package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/validation"
)

type CartLine struct {
	ItemID   int64 `json:"item_id" validate:"required"`
	Quantity int   `json:"quantity" validate:"min=1,max=10000"`
}

type CheckoutRequest struct {
	Items           []CartLine       `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string           `json:"payment_method" validate:"required,oneof=cod online"`
	ShippingName    string           `json:"shipping_name" validate:"required,max=255"`
	ShippingAddress string           `json:"shipping_address" validate:"required"`
	ShippingPhone   string           `json:"shipping_phone" validate:"required,max=32"`
	ShippingEmail   string           `json:"shipping_email" validate:"required,email"`
	TaxPercentage   *decimal.Decimal `json:"tax_percentage"`
	ShippingCharge  *decimal.Decimal `json:"shipping_charge"`
}

type Service struct {
	log      *slog.Logger
	tx       TxManager
	pricer   *Pricer
	orders   OrderRepository
	payments PaymentRepository
	events   EventRecorder
	validate *validation.Validator
	now      func() time.Time
}

func NewService(log *slog.Logger, tx TxManager, pricer *Pricer, orders OrderRepository, payments PaymentRepository, events EventRecorder) *Service {
	return &Service{
		log:      log,
		tx:       tx,
		pricer:   pricer,
		orders:   orders,
		payments: payments,
		events:   events,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder prices the cart and stores the order, its items, a pending
// payment and an order.created event in one transaction.
func (s *Service) CreateOrder(ctx context.Context, p auth.Principal, req CheckoutRequest) (domain.Order, error) {
	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, domain.CartLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	if err := validation.Merge(s.validate.Struct(req), s.pricer.Check(lines, req.TaxPercentage, req.ShippingCharge)); err != nil {
		return domain.Order{}, err
	}
	method, _ := payment.ParseMethod(req.PaymentMethod)
	quote, err := s.pricer.Quote(ctx, lines, req.TaxPercentage, req.ShippingCharge)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.NewOrder(domain.NewOrderNumber(now, uuid.New()), p.UserID, quote, method, domain.ShippingInfo{
		Name:    req.ShippingName,
		Address: req.ShippingAddress,
		Phone:   req.ShippingPhone,
		Email:   req.ShippingEmail,
	}, now)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, &order); err != nil {
			return err
		}
		pay := payment.New(order.ID, order.TotalAmount, method, now)
		if err := s.payments.Create(ctx, &pay); err != nil {
			return err
		}
		order.Payment = &pay

		return s.events.Append(ctx, "order", order.OrderNumber, domain.EventOrderCreated, domain.OrderCreated{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: string(order.PaymentMethod),
			Items:         order.Items,
		})
	})
	if err != nil {
		return domain.Order{}, persistence("Failed to create order", err)
	}

	s.log.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", order.UserID, "total", order.TotalAmount.StringFixed(2))
	return order, nil
}

// GetOrder returns the order with items and payment. Orders owned by other
// users are reported as missing to non-admin callers.
func (s *Service) GetOrder(ctx context.Context, p auth.Principal, id int64) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, apperr.NotFound("Order")
	}
	if err != nil {
		return domain.Order{}, apperr.Persistence("Failed to load order", err)
	}
	if !p.CanAccess(o.UserID) {
		return domain.Order{}, apperr.NotFound("Order")
	}
	return o, nil
}

// UpdateStatus is the administrative override. Any valid status may be set
// regardless of the checkout state machine.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id int64, status string) (domain.Order, error) {
	if !p.IsAdmin() {
		return domain.Order{}, apperr.Forbidden("Admin access required.")
	}
	next, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Order{}, apperr.InvalidField("status", "The selected status is invalid.")
	}

	var order domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		prev := o.Status
		if prev == next {
			order = o
			return nil
		}
		o.Status = next
		o.UpdatedAt = s.now()
		if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
			return err
		}
		order = o
		return s.events.Append(ctx, "order", o.OrderNumber, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			From:        prev,
			To:          next,
		})
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, apperr.NotFound("Order")
	}
	if err != nil {
		return domain.Order{}, persistence("Failed to update order status", err)
	}

	s.log.Info("order status updated", "order_id", order.ID, "status", order.Status, "by", p.UserID)
	return s.GetOrder(ctx, p, order.ID)
}

// persistence keeps typed application errors and hides everything else
// behind message.
func persistence(message string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Persistence(message, err)
}
