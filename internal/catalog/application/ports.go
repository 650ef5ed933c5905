package application

import (
	"context"

	"github.com/dmehra2102/checkout-service/internal/catalog/domain"
)

type ItemRepository interface {
	// FindActive returns the active items among ids keyed by id. Unknown and
	// inactive ids are absent from the map.
	FindActive(ctx context.Context, ids []int64) (map[int64]domain.Item, error)
	List(ctx context.Context, search string, limit, offset int) ([]domain.Item, int, error)
}
