package application

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

const (
	PageSize     = 20
	recentOrders = 10
)

var csvHeader = []string{
	"Order ID", "Order Number", "User", "Email", "Status", "Payment Method", "Payment Status", "Total Amount", "Created At",
}

var orderStatuses = []order.OrderStatus{
	order.StatusPending, order.StatusProcessing, order.StatusCompleted, order.StatusCancelled, order.StatusFailed,
}

type Service struct {
	log        *slog.Logger
	repo       Repository
	windowDays int
	now        func() time.Time
}

func NewService(log *slog.Logger, repo Repository, windowDays int) *Service {
	if windowDays < 1 {
		windowDays = 7
	}
	return &Service{
		log:        log,
		repo:       repo,
		windowDays: windowDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return Dashboard{}, apperr.Persistence("Failed to load dashboard", err)
	}

	byStatus, err := s.repo.OrdersByStatus(ctx)
	if err != nil {
		return Dashboard{}, apperr.Persistence("Failed to load dashboard", err)
	}
	counts := make(map[string]int, len(orderStatuses))
	for _, st := range orderStatuses {
		counts[string(st)] = byStatus[string(st)]
	}

	today := s.now().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(s.windowDays - 1))
	sales, err := s.repo.SalesByDay(ctx, since)
	if err != nil {
		return Dashboard{}, apperr.Persistence("Failed to load dashboard", err)
	}
	days := make([]DaySales, 0, s.windowDays)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		total, ok := sales[key]
		if !ok {
			total = decimal.Zero
		}
		days = append(days, DaySales{Date: key, Total: total})
	}

	recent, err := s.repo.RecentOrders(ctx, recentOrders)
	if err != nil {
		return Dashboard{}, apperr.Persistence("Failed to load dashboard", err)
	}
	if recent == nil {
		recent = []OrderRow{}
	}

	return Dashboard{
		Stats:          stats,
		OrdersByStatus: counts,
		SalesByDay:     days,
		RecentOrders:   recent,
	}, nil
}

func (s *Service) ListOrders(ctx context.Context, f Filter, page int) (OrderPage, error) {
	if page < 1 {
		page = 1
	}
	rows, total, err := s.repo.ListOrders(ctx, f, PageSize, (page-1)*PageSize)
	if err != nil {
		return OrderPage{}, apperr.Persistence("Failed to load orders", err)
	}
	if rows == nil {
		rows = []OrderRow{}
	}
	totalPages := (total + PageSize - 1) / PageSize
	return OrderPage{
		Orders: rows,
		Meta: PageMeta{
			Page:       page,
			Limit:      PageSize,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}, nil
}

// ExportCSV writes every matching order to w. With no matches only the
// header row is written.
func (s *Service) ExportCSV(ctx context.Context, f Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	n := 0
	err := s.repo.EachOrder(ctx, f, func(row OrderRow) error {
		n++
		return cw.Write([]string{
			strconv.FormatInt(row.ID, 10),
			row.OrderNumber,
			row.UserName,
			row.UserEmail,
			row.Status,
			row.PaymentMethod,
			row.PaymentStatus,
			row.TotalAmount.StringFixed(2),
			row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	})
	if err != nil {
		return apperr.Persistence("Failed to export orders", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	s.log.Info("orders exported", "rows", n)
	return nil
}

// ExportFilename names an export taken at now.
func ExportFilename(now time.Time) string {
	return "orders_export_" + now.UTC().Format("20060102_150405") + ".csv"
}
