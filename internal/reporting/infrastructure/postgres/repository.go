package postgres

import (
	"context"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/checkout-service/internal/reporting/application"
	"github.com/dmehra2102/checkout-service/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// likeEscaper makes user input match literally under LIKE's default
// backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var rowColumns = []string{
	"o.id", "o.order_number", "o.user_id", "COALESCE(u.name, '')", "COALESCE(u.email, '')",
	"o.status", "o.payment_method", "COALESCE(p.status, '')", "o.total_amount", "o.created_at",
}

type Repository struct {
	log *slog.Logger
	db  database.Querier
}

func NewRepository(log *slog.Logger, db database.Querier) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Stats(ctx context.Context) (application.Stats, error) {
	var s application.Stats
	err := r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM orders),
		(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
		(SELECT COUNT(*) FROM orders WHERE status = 'completed'),
		(SELECT COUNT(*) FROM orders WHERE status = 'failed'),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'completed'),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'pending'),
		(SELECT COUNT(*) FROM payments WHERE status = 'completed' AND payment_method = 'cod'),
		(SELECT COUNT(*) FROM payments WHERE status = 'completed' AND payment_method = 'online')`).
		Scan(&s.TotalOrders, &s.PendingOrders, &s.CompletedOrders, &s.FailedOrders,
			&s.PaidAmount, &s.UnpaidAmount, &s.CODPayments, &s.OnlinePayments)
	if err != nil {
		return application.Stats{}, err
	}
	s.TotalSales = s.PaidAmount
	return s, nil
}

func (r *Repository) OrdersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *Repository) SalesByDay(ctx context.Context, since time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(amount)
		FROM payments
		WHERE status = 'completed' AND created_at >= $1
		GROUP BY day`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var day string
		var total decimal.Decimal
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		out[day] = total
	}
	return out, rows.Err()
}

func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]application.OrderRow, error) {
	query, args, err := baseQuery().OrderBy("o.created_at DESC", "o.id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	var out []application.OrderRow
	err = r.each(ctx, query, args, func(row application.OrderRow) error {
		out = append(out, row)
		return nil
	})
	return out, err
}

func (r *Repository) ListOrders(ctx context.Context, f application.Filter, limit, offset int) ([]application.OrderRow, int, error) {
	countSQL, countArgs, err := applyFilter(
		psql.Select("COUNT(*)").From("orders o").LeftJoin("payments p ON p.order_id = o.id"), f,
	).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := applyFilter(baseQuery(), f).
		OrderBy("o.created_at DESC", "o.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	var out []application.OrderRow
	err = r.each(ctx, query, args, func(row application.OrderRow) error {
		out = append(out, row)
		return nil
	})
	return out, total, err
}

func (r *Repository) EachOrder(ctx context.Context, f application.Filter, fn func(application.OrderRow) error) error {
	query, args, err := applyFilter(baseQuery(), f).OrderBy("o.created_at DESC", "o.id DESC").ToSql()
	if err != nil {
		return err
	}
	return r.each(ctx, query, args, fn)
}

func (r *Repository) each(ctx context.Context, query string, args []any, fn func(application.OrderRow) error) error {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanRow(rows pgx.Rows) (application.OrderRow, error) {
	var row application.OrderRow
	err := rows.Scan(&row.ID, &row.OrderNumber, &row.UserID, &row.UserName, &row.UserEmail,
		&row.Status, &row.PaymentMethod, &row.PaymentStatus, &row.TotalAmount, &row.CreatedAt)
	return row, err
}

func baseQuery() sq.SelectBuilder {
	return psql.Select(rowColumns...).
		From("orders o").
		LeftJoin("users u ON u.id = o.user_id").
		LeftJoin("payments p ON p.order_id = o.id")
}

// applyFilter adds the listing filters to b. date_to covers the whole day.
func applyFilter(b sq.SelectBuilder, f application.Filter) sq.SelectBuilder {
	if f.Status != "" {
		b = b.Where(sq.Eq{"o.status": f.Status})
	}
	if f.PaymentMethod != "" {
		b = b.Where(sq.Eq{"o.payment_method": f.PaymentMethod})
	}
	if f.PaymentStatus != "" {
		b = b.Where(sq.Eq{"p.status": f.PaymentStatus})
	}
	if f.OrderNumber != "" {
		b = b.Where(sq.ILike{"o.order_number": "%" + likeEscaper.Replace(f.OrderNumber) + "%"})
	}
	if f.DateFrom != nil {
		b = b.Where(sq.GtOrEq{"o.created_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		b = b.Where(sq.Lt{"o.created_at": f.DateTo.AddDate(0, 0, 1)})
	}
	return b
}
