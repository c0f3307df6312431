package menu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Querier is the persistence surface the service needs. *Store satisfies it.
type Querier interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListItems(ctx context.Context, p ListParams) ([]Item, int64, error)
	GetItemBySlug(ctx context.Context, slug string) (Item, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]Item, error)
	UpsertItem(ctx context.Context, it Item) (Item, error)
}

// ServiceConfig wires the menu service.
type ServiceConfig struct {
	Queries      Querier
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// Service serves menu browsing with read-through caching.
type Service struct {
	q            Querier
	cache        *Cache
	defaultLimit int32
	maxLimit     int32
}

// NewService validates the configuration and builds a menu service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("menu: queries are required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Service{
		q:            cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: int32(defaultLimit),
		maxLimit:     int32(maxLimit),
	}, nil
}

// Categories lists menu categories, cached.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	const key = "menu:categories"
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	categories, err := s.q.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, categories)
	return categories, nil
}

// Items lists a page of menu items. Search queries bypass the cache.
func (s *Service) Items(ctx context.Context, categorySlug, search string, page, perPage int) ([]Item, int64, error) {
	if page <= 0 {
		page = 1
	}
	limit := int32(perPage)
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params := ListParams{
		CategorySlug: strings.TrimSpace(categorySlug),
		Search:       strings.TrimSpace(search),
		Limit:        limit,
		Offset:       int32(page-1) * limit,
	}

	type pageResult struct {
		Items []Item `json:"items"`
		Total int64  `json:"total"`
	}
	key := ""
	if params.Search == "" {
		key = fmt.Sprintf("menu:items:%s:%d:%d", params.CategorySlug, page, limit)
		var cached pageResult
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached.Items, cached.Total, nil
		}
	}
	items, total, err := s.q.ListItems(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if key != "" {
		_ = s.cache.SetJSON(ctx, key, pageResult{Items: items, Total: total})
	}
	return items, total, nil
}

// ItemDetail returns a single menu item by slug.
func (s *Service) ItemDetail(ctx context.Context, slug string) (Item, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Item{}, ErrNotFound
	}
	return s.q.GetItemBySlug(ctx, slug)
}

// Hydrate loads menu items referenced by cart rows, keyed by id.
func (s *Service) Hydrate(ctx context.Context, ids []string) (map[string]Item, error) {
	return s.q.GetItemsByIDs(ctx, ids)
}

// UpsertItem writes a menu item and drops the cache entries it staled.
// Listing pages beyond the first age out with the TTL.
func (s *Service) UpsertItem(ctx context.Context, it Item) (Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Slug = strings.TrimSpace(it.Slug)
	if it.Name == "" || it.Slug == "" {
		return Item{}, common.NewAppError("INVALID_MENU_ITEM", "name and slug are required", http.StatusUnprocessableEntity, nil)
	}
	if it.Price.IsNegative() {
		return Item{}, common.NewAppError("INVALID_MENU_ITEM", "price must not be negative", http.StatusUnprocessableEntity, nil)
	}
	saved, err := s.q.UpsertItem(ctx, it)
	if err != nil {
		return Item{}, err
	}
	_ = s.cache.Invalidate(ctx, "menu:categories", fmt.Sprintf("menu:items::1:%d", s.defaultLimit))
	return saved, nil
}
