package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/database"
)

type Repository struct {
	log *slog.Logger
	db  database.Querier
}

func NewRepository(log *slog.Logger, db database.Querier) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Create(ctx context.Context, p *domain.Payment) error {
	return database.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO payments (order_id, amount, payment_method, status, transaction_id, paid_at, payment_details, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		p.OrderID, p.Amount, p.Method, p.Status, p.TransactionID, p.PaidAt, details(p.Details), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (r *Repository) GetByOrderForUpdate(ctx context.Context, orderID int64) (domain.Payment, error) {
	var p domain.Payment
	err := database.Conn(ctx, r.db).QueryRow(ctx, `SELECT id, order_id, amount, payment_method, status, transaction_id, paid_at, payment_details, created_at, updated_at
		FROM payments WHERE order_id=$1 FOR UPDATE`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.TransactionID, &p.PaidAt, &p.Details, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

func (r *Repository) Update(ctx context.Context, p domain.Payment) error {
	ct, err := database.Conn(ctx, r.db).Exec(ctx, `UPDATE payments
		SET status=$2, transaction_id=$3, paid_at=$4, payment_details=$5, updated_at=$6
		WHERE id=$1`,
		p.ID, p.Status, p.TransactionID, p.PaidAt, details(p.Details), p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func details(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}
