package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Stats(ctx context.Context) (Stats, error)
	OrdersByStatus(ctx context.Context) (map[string]int, error)
	// SalesByDay sums completed payments per UTC day (YYYY-MM-DD) from since.
	SalesByDay(ctx context.Context, since time.Time) (map[string]decimal.Decimal, error)
	RecentOrders(ctx context.Context, limit int) ([]OrderRow, error)
	ListOrders(ctx context.Context, f Filter, limit, offset int) ([]OrderRow, int, error)
	// EachOrder streams every order matching f, newest first.
	EachOrder(ctx context.Context, f Filter, fn func(OrderRow) error) error
}
