package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/validation"
)

type ProcessRequest struct {
	TransactionID  string         `json:"transaction_id" validate:"omitempty,max=255"`
	PaymentDetails map[string]any `json:"payment_details"`
}

type ProcessResult struct {
	Order         order.Order   `json:"order"`
	PaymentStatus domain.Status `json:"payment_status"`
}

type Service struct {
	log      *slog.Logger
	tx       TxManager
	orders   OrderRepository
	payments PaymentRepository
	gateway  Gateway
	events   EventRecorder
	validate *validation.Validator
	now      func() time.Time
}

func NewService(log *slog.Logger, tx TxManager, orders OrderRepository, payments PaymentRepository, gateway Gateway, events EventRecorder) *Service {
	return &Service{
		log:      log,
		tx:       tx,
		orders:   orders,
		payments: payments,
		gateway:  gateway,
		events:   events,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayment settles the order's payment. Cash on delivery always
// completes and forces the order to completed whatever its status; online
// payments complete or fail on the gateway's answer and refuse cancelled or
// failed orders. Calling it on an already completed payment
// returns the current state unchanged.
func (s *Service) ProcessPayment(ctx context.Context, p auth.Principal, orderID int64, req ProcessRequest) (ProcessResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return ProcessResult{}, err
	}

	var res ProcessResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !p.CanAccess(o.UserID) {
			return order.ErrOrderNotFound
		}
		pay, err := s.payments.GetByOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if pay.Status == domain.StatusCompleted {
			o.Payment = &pay
			res = ProcessResult{Order: o, PaymentStatus: pay.Status}
			return nil
		}
		if pay.Method == domain.MethodOnline && (o.Status == order.StatusCancelled || o.Status == order.StatusFailed) {
			return apperr.InvalidField("order", fmt.Sprintf("The order is %s and can no longer be paid.", o.Status))
		}

		result := ChargeResult{Approved: true, TransactionID: req.TransactionID}
		if pay.Method == domain.MethodOnline {
			result, err = s.gateway.Charge(ctx, o, pay, req.PaymentDetails)
			if err != nil {
				return fmt.Errorf("gateway charge: %w", err)
			}
			if result.TransactionID == "" {
				result.TransactionID = req.TransactionID
			}
		}

		now := s.now()
		eventType := domain.EventPaymentCompleted
		if result.Approved {
			pay.Complete(result.TransactionID, req.PaymentDetails, now)
			if pay.Method == domain.MethodCOD {
				o.ForceStatus(order.StatusCompleted, now)
			} else if err := o.TransitionTo(order.StatusCompleted, now); err != nil {
				return err
			}
		} else {
			eventType = domain.EventPaymentFailed
			pay.Fail(req.PaymentDetails, now)
			if order.CanTransition(o.Status, order.StatusFailed) {
				_ = o.TransitionTo(order.StatusFailed, now)
			}
		}

		if err := s.payments.Update(ctx, pay); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
			return err
		}
		o.Payment = &pay
		res = ProcessResult{Order: o, PaymentStatus: pay.Status}

		evt := domain.PaymentProcessed{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Amount:      pay.Amount,
			Method:      pay.Method,
			Status:      pay.Status,
			Reason:      result.Reason,
		}
		if pay.TransactionID != nil {
			evt.TransactionID = *pay.TransactionID
		}
		return s.events.Append(ctx, "order", o.OrderNumber, eventType, evt)
	})
	if err != nil {
		return ProcessResult{}, translate("Payment processing failed", err)
	}

	s.log.Info("payment processed", "order_id", res.Order.ID, "payment_status", res.PaymentStatus, "order_status", res.Order.Status)
	return res, nil
}

// UpdatePaymentStatus is the administrative override of a payment status.
// Moving the payment to completed also forces the order to completed; other
// statuses leave the order as it is.
func (s *Service) UpdatePaymentStatus(ctx context.Context, p auth.Principal, orderID int64, status string) (domain.Payment, error) {
	if !p.IsAdmin() {
		return domain.Payment{}, apperr.Forbidden("Admin access required.")
	}
	next, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Payment{}, apperr.InvalidField("status", "The selected status is invalid.")
	}

	var pay domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		pay, err = s.payments.GetByOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}

		prev := pay.Status
		now := s.now()
		pay.SetStatus(next, now)
		if err := s.payments.Update(ctx, pay); err != nil {
			return err
		}
		if next == domain.StatusCompleted && o.Status != order.StatusCompleted {
			if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusCompleted, now); err != nil {
				return err
			}
		}
		return s.events.Append(ctx, "order", o.OrderNumber, domain.EventPaymentStatusChanged, domain.PaymentStatusChanged{
			OrderID: o.ID,
			From:    prev,
			To:      next,
		})
	})
	if err != nil {
		return domain.Payment{}, translate("Failed to update payment status", err)
	}

	s.log.Info("payment status updated", "order_id", orderID, "status", pay.Status, "by", p.UserID)
	return pay, nil
}

// PaymentStatus returns the order with its items and payment.
func (s *Service) PaymentStatus(ctx context.Context, p auth.Principal, orderID int64) (order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, translate("Failed to load payment", err)
	}
	if !p.CanAccess(o.UserID) {
		return order.Order{}, apperr.NotFound("Order")
	}
	return o, nil
}

func translate(message string, err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, order.ErrOrderNotFound):
		return apperr.NotFound("Order")
	case errors.Is(err, domain.ErrPaymentNotFound):
		return apperr.NotFound("Payment")
	default:
		return apperr.Persistence(message, err)
	}
}
