package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/database"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.subtotal, o.tax, o.shipping_charge, o.total_amount, o.status,
	o.shipping_name, o.shipping_address, o.shipping_phone, o.shipping_email, o.payment_method, o.created_at, o.updated_at`

type Repository struct {
	log *slog.Logger
	db  database.Querier
}

func NewRepository(log *slog.Logger, db database.Querier) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Create(ctx context.Context, o *domain.Order) error {
	conn := database.Conn(ctx, r.db)
	err := conn.QueryRow(ctx, `INSERT INTO orders (order_number, user_id, subtotal, tax, shipping_charge, total_amount, status,
			shipping_name, shipping_address, shipping_phone, shipping_email, payment_method, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		o.OrderNumber, o.UserID, o.Subtotal, o.Tax, o.ShippingCharge, o.TotalAmount, o.Status,
		o.Name, o.Address, o.Phone, o.Email, o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, item_id, product_name, product_price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			o.ID, item.ItemID, item.ProductName, item.ProductPrice, item.Quantity, item.Subtotal)
	}
	br := conn.SendBatch(ctx, batch)
	for i := range o.Items {
		if err := br.QueryRow().Scan(&o.Items[i].ID); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
		o.Items[i].OrderID = o.ID
	}
	return br.Close()
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	conn := database.Conn(ctx, r.db)
	var o domain.Order
	var p payment.Payment
	var payID *int64
	var payAmount decimal.NullDecimal
	var payMethod, payStatus *string
	var payDetails map[string]any
	var payCreated, payUpdated *time.Time

	err := conn.QueryRow(ctx, `SELECT `+orderColumns+`,
			p.id, p.amount, p.payment_method, p.status, p.transaction_id, p.paid_at, p.payment_details, p.created_at, p.updated_at
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.id = $1`, id).
		Scan(append(orderDest(&o), &payID, &payAmount, &payMethod, &payStatus, &p.TransactionID, &p.PaidAt, &payDetails, &payCreated, &payUpdated)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if payID != nil {
		p.ID = *payID
		p.OrderID = o.ID
		p.Amount = payAmount.Decimal
		p.Method = payment.Method(*payMethod)
		p.Status = payment.Status(*payStatus)
		p.Details = payDetails
		p.CreatedAt = *payCreated
		p.UpdatedAt = *payUpdated
		o.Payment = &p
	}

	o.Items, err = r.items(ctx, conn, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	conn := database.Conn(ctx, r.db)
	var o domain.Order
	err := conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id).Scan(orderDest(&o)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = r.items(ctx, conn, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, at time.Time) error {
	ct, err := database.Conn(ctx, r.db).Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, status, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) items(ctx context.Context, conn database.Querier, orderID int64) ([]domain.OrderItem, error) {
	rows, err := conn.Query(ctx, `SELECT id, order_id, item_id, product_name, product_price, quantity, subtotal
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.ProductName, &it.ProductPrice, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func orderDest(o *domain.Order) []any {
	return []any{
		&o.ID, &o.OrderNumber, &o.UserID, &o.Subtotal, &o.Tax, &o.ShippingCharge, &o.TotalAmount, &o.Status,
		&o.Name, &o.Address, &o.Phone, &o.Email, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	}
}
