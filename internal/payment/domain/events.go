package domain

import "github.com/shopspring/decimal"

const (
	EventPaymentCompleted     = "payment.completed"
	EventPaymentFailed        = "payment.failed"
	EventPaymentStatusChanged = "payment.status_changed"
)

type PaymentProcessed struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"payment_method"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

type PaymentStatusChanged struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}
