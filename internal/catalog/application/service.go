package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dmehra2102/checkout-service/internal/catalog/domain"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

const PageSize = 20

type Service struct {
	log  *slog.Logger
	repo ItemRepository
}

func NewService(log *slog.Logger, repo ItemRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Lookup resolves ids with a single repository read over the distinct ids.
func (s *Service) Lookup(ctx context.Context, ids []int64) (map[int64]domain.Item, error) {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[int64]domain.Item{}, nil
	}
	items, err := s.repo.FindActive(ctx, unique)
	if err != nil {
		return nil, apperr.Persistence("Failed to load items", err)
	}
	return items, nil
}

type Page struct {
	Items  []domain.Item
	Total  int
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, search string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * PageSize
	items, total, err := s.repo.List(ctx, strings.TrimSpace(search), PageSize, offset)
	if err != nil {
		return Page{}, apperr.Persistence("Failed to load items", err)
	}
	if items == nil {
		items = []domain.Item{}
	}
	return Page{Items: items, Total: total, Limit: PageSize, Offset: offset}, nil
}
