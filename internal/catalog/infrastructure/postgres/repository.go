package postgres

import (
	"context"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/dmehra2102/checkout-service/internal/catalog/domain"
	"github.com/dmehra2102/checkout-service/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repository struct {
	log *slog.Logger
	db  database.Querier
}

func NewRepository(log *slog.Logger, db database.Querier) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) FindActive(ctx context.Context, ids []int64) (map[int64]domain.Item, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx,
		`SELECT id, name, COALESCE(description, ''), price, is_active, created_at, updated_at
		 FROM items WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[int64]domain.Item, len(ids))
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items[it.ID] = it
	}
	return items, rows.Err()
}

func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]domain.Item, int, error) {
	where := sq.And{sq.Eq{"is_active": true}}
	if search != "" {
		where = append(where, sq.ILike{"name": "%" + search + "%"})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("items").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	conn := database.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := psql.
		Select("id", "name", "COALESCE(description, '')", "price", "is_active", "created_at", "updated_at").
		From("items").
		Where(where).
		OrderBy("name", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// Upsert inserts or refreshes an item by name. Used by the seed command.
func (r *Repository) Upsert(ctx context.Context, it domain.Item) (int64, error) {
	var id int64
	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO items (name, description, price, is_active)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (name) DO UPDATE SET description=$2, price=$3, is_active=$4, updated_at=now()
		 RETURNING id`,
		it.Name, it.Description, it.Price, it.IsActive).Scan(&id)
	return id, err
}
