package domain

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return st, true
	}
	return "", false
}

type Method string

const (
	MethodCOD    Method = "cod"
	MethodOnline Method = "online"
)

func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodCOD, MethodOnline:
		return m, true
	}
	return "", false
}

type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"payment_method"`
	Status        Status          `json:"status"`
	TransactionID *string         `json:"transaction_id"`
	PaidAt        *time.Time      `json:"paid_at"`
	Details       map[string]any  `json:"payment_details"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func New(orderID int64, amount decimal.Decimal, method Method, now time.Time) Payment {
	return Payment{
		OrderID:   orderID,
		Amount:    amount,
		Method:    method,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus moves the payment to s. paid_at is stamped the first time the
// payment enters completed and is never overwritten.
func (p *Payment) SetStatus(s Status, now time.Time) {
	p.Status = s
	if s == StatusCompleted && p.PaidAt == nil {
		paid := now
		p.PaidAt = &paid
	}
	p.UpdatedAt = now
}

// Complete marks the payment completed. A supplied transaction id replaces
// the stored one; otherwise an existing id is kept and a missing one is
// generated.
func (p *Payment) Complete(transactionID string, details map[string]any, now time.Time) {
	switch {
	case transactionID != "":
		p.TransactionID = &transactionID
	case p.TransactionID == nil:
		id := NewTransactionID(uuid.New())
		p.TransactionID = &id
	}
	if details != nil {
		p.Details = details
	}
	p.SetStatus(StatusCompleted, now)
}

func (p *Payment) Fail(details map[string]any, now time.Time) {
	if details != nil {
		p.Details = details
	}
	p.SetStatus(StatusFailed, now)
}

// NewTransactionID formats TXN- followed by 13 upper-case hex digits.
func NewTransactionID(id uuid.UUID) string {
	return "TXN-" + strings.ToUpper(hex.EncodeToString(id[:]))[:13]
}
