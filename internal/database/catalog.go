package database

import (
	"context"

	"github.com/google/uuid"
)

const listCategories = `
SELECT id, name, sort_order
FROM product_categories
ORDER BY sort_order, name
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const listProducts = `
SELECT id, name, sell_price, category_id, is_active
FROM products
WHERE is_active
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

const listProductsByCategory = `
SELECT id, name, sell_price, category_id, is_active
FROM products
WHERE is_active AND category_id = $1
ORDER BY name
`

func (q *Queries) ListProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

const getProductsForOrder = `
SELECT id, name, sell_price, category_id, is_active
FROM products
WHERE is_active AND id = ANY($1)
`

// GetProductsForOrder fetches every distinct product in a cart in one round
// trip. Inactive or unknown ids are simply absent from the result.
func (q *Queries) GetProductsForOrder(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, getProductsForOrder, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]Product, error) {
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SellPrice, &p.CategoryID, &p.IsActive); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
