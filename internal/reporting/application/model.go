package application

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

const dateLayout = "2006-01-02"

type Stats struct {
	TotalOrders     int
	TotalSales      decimal.Decimal
	PendingOrders   int
	CompletedOrders int
	FailedOrders    int
	PaidAmount      decimal.Decimal
	UnpaidAmount    decimal.Decimal
	CODPayments     int
	OnlinePayments  int
}

type DaySales struct {
	Date  string
	Total decimal.Decimal
}

type Dashboard struct {
	Stats
	OrdersByStatus map[string]int
	SalesByDay     []DaySales
	RecentOrders   []OrderRow
}

// OrderRow is the flattened order used by listings and exports. User fields
// are empty when the user row is missing.
type OrderRow struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	UserName      string          `json:"user_name"`
	UserEmail     string          `json:"user_email"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows listings and exports. Empty fields do not filter. Dates are
// inclusive calendar days in UTC.
type Filter struct {
	Status        string
	PaymentMethod string
	PaymentStatus string
	OrderNumber   string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// FilterFromQuery reads the admin listing query string.
func FilterFromQuery(q url.Values) (Filter, error) {
	f := Filter{
		Status:        strings.TrimSpace(q.Get("status")),
		PaymentMethod: strings.TrimSpace(q.Get("payment_method")),
		PaymentStatus: strings.TrimSpace(q.Get("payment_status")),
		OrderNumber:   strings.TrimSpace(q.Get("order_number")),
	}
	fields := map[string]string{}
	if f.Status != "" {
		if _, ok := order.ParseStatus(f.Status); !ok {
			fields["status"] = "The selected status is invalid."
		}
	}
	if f.PaymentMethod != "" {
		if _, ok := payment.ParseMethod(f.PaymentMethod); !ok {
			fields["payment_method"] = "The selected payment_method is invalid."
		}
	}
	if f.PaymentStatus != "" {
		if _, ok := payment.ParseStatus(f.PaymentStatus); !ok {
			fields["payment_status"] = "The selected payment_status is invalid."
		}
	}
	for key, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields[key] = "The " + key + " field must be a valid date (YYYY-MM-DD)."
			continue
		}
		*dst = &d
	}
	if len(fields) > 0 {
		return Filter{}, apperr.Validation(fields)
	}
	return f, nil
}

type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type OrderPage struct {
	Orders []OrderRow `json:"orders"`
	Meta   PageMeta   `json:"meta"`
}
