package menu

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested menu entity does not exist.
var ErrNotFound = errors.New("menu item not found")

// Category groups menu items for browsing.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Position int    `json:"position"`
}

// Item is one orderable dish on the menu.
type Item struct {
	ID          string          `json:"id"`
	CategoryID  *string         `json:"categoryId,omitempty"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	IsAvailable bool            `json:"isAvailable"`
	StockLimit  *int32          `json:"stockLimit,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ListParams filters and paginates menu listings.
type ListParams struct {
	CategorySlug  string
	Search        string
	OnlyAvailable bool
	Limit         int32
	Offset        int32
}

// Store runs menu queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// ListCategories returns all categories ordered by position.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, name, slug, position
		FROM menu_categories
		ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListItems returns a page of menu items matching the filters.
func (s *Store) ListItems(ctx context.Context, p ListParams) ([]Item, int64, error) {
	where := `WHERE ($1 = '' OR c.slug = $1)
		AND ($2 = '' OR i.name ILIKE '%' || $2 || '%')
		AND (NOT $3 OR i.is_available)`
	rows, err := s.Pool.Query(ctx, `
		SELECT i.id::text, i.category_id::text, i.name, i.slug, i.description,
		       i.price, i.image_url, i.is_available, i.stock_limit, i.updated_at
		FROM menu_items i
		LEFT JOIN menu_categories c ON c.id = i.category_id
		`+where+`
		ORDER BY i.name
		LIMIT $4 OFFSET $5`,
		p.CategorySlug, p.Search, p.OnlyAvailable, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Slug, &it.Description,
			&it.Price, &it.ImageURL, &it.IsAvailable, &it.StockLimit, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	err = s.Pool.QueryRow(ctx, `
		SELECT count(*)
		FROM menu_items i
		LEFT JOIN menu_categories c ON c.id = i.category_id
		`+where,
		p.CategorySlug, p.Search, p.OnlyAvailable).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetItemBySlug returns one menu item.
func (s *Store) GetItemBySlug(ctx context.Context, slug string) (Item, error) {
	var it Item
	err := s.Pool.QueryRow(ctx, `
		SELECT id::text, category_id::text, name, slug, description,
		       price, image_url, is_available, stock_limit, updated_at
		FROM menu_items
		WHERE slug = $1`, slug).
		Scan(&it.ID, &it.CategoryID, &it.Name, &it.Slug, &it.Description,
			&it.Price, &it.ImageURL, &it.IsAvailable, &it.StockLimit, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// GetItemsByIDs hydrates menu items for cart pricing.
func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]Item, error) {
	if len(ids) == 0 {
		return map[string]Item{}, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, category_id::text, name, slug, description,
		       price, image_url, is_available, stock_limit, updated_at
		FROM menu_items
		WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Item, len(ids))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Slug, &it.Description,
			&it.Price, &it.ImageURL, &it.IsAvailable, &it.StockLimit, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

// UpsertItem creates or updates a menu item keyed by slug.
func (s *Store) UpsertItem(ctx context.Context, it Item) (Item, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO menu_items (category_id, name, slug, description, price, image_url, is_available, stock_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url,
			is_available = EXCLUDED.is_available,
			stock_limit = EXCLUDED.stock_limit,
			updated_at = now()
		RETURNING id::text, category_id::text, name, slug, description,
			price, image_url, is_available, stock_limit, updated_at`,
		it.CategoryID, it.Name, it.Slug, it.Description, it.Price,
		it.ImageURL, it.IsAvailable, it.StockLimit).
		Scan(&it.ID, &it.CategoryID, &it.Name, &it.Slug, &it.Description,
			&it.Price, &it.ImageURL, &it.IsAvailable, &it.StockLimit, &it.UpdatedAt)
	return it, err
}
