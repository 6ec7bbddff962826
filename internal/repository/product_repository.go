package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// ProductRepo stores products. Ingredients live in a JSON column and
// category links in product_categories.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productColumns = "p.id, p.restaurant_id, p.name, p.ingredients, p.price_cents, p.active, p.available, p.created_at, p.updated_at"

var productSort = map[string]string{
	"id":         "p.id",
	"name":       "p.name",
	"price":      "p.price_cents",
	"created_at": "p.created_at",
}

func scanProduct(s interface{ Scan(...any) error }) (*model.Product, error) {
	var (
		p           model.Product
		ingredients []byte
	)
	if err := s.Scan(&p.ID, &p.RestaurantID, &p.Name, &ingredients, &p.PriceCents, &p.Active, &p.Available, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &p.Ingredients); err != nil {
			return nil, err
		}
	}
	if p.Ingredients == nil {
		p.Ingredients = []string{}
	}
	p.CategoryIDs = []uint64{}
	return &p, nil
}

func encodeIngredients(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	return string(b), err
}

// Create inserts p with its category links in one transaction.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	ingredients, err := encodeIngredients(p.Ingredients)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO products (restaurant_id, name, ingredients, price_cents, active, available) VALUES (?, ?, ?, ?, ?, ?)",
		p.RestaurantID, p.Name, ingredients, p.PriceCents, p.Active, p.Available)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := linkCategories(ctx, tx, uint64(id), p.CategoryIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

func linkCategories(ctx context.Context, tx *sql.Tx, productID uint64, categoryIDs []uint64) error {
	for _, cid := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO product_categories (product_id, category_id) VALUES (?, ?)", productID, cid); err != nil {
			return classify(err)
		}
	}
	return nil
}

// GetByID returns the product regardless of its active flag.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products p WHERE p.id = ?", id))
	if err != nil {
		return nil, classify(err)
	}
	if err := r.loadCategories(ctx, []*model.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, q ProductQuery) ([]*model.Product, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "p.restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	if q.Active != nil {
		conds = append(conds, "p.active = ?")
		args = append(args, *q.Active)
	}
	if q.CategoryID != 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = ?)")
		args = append(args, q.CategoryID)
	}
	where := whereClause(conds)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products p"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	pg := q.Pagination.Normalize()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products p"+where+orderBy(pg, productSort, "p.name")+" LIMIT ? OFFSET ?",
		append(args, pg.Limit, pg.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadCategories(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ProductRepo) loadCategories(ctx context.Context, products []*model.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Product, len(products))
	args := make([]any, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		args = append(args, p.ID)
	}
	q := "SELECT product_id, category_id FROM product_categories WHERE product_id IN (?" +
		strings.Repeat(",?", len(args)-1) + ") ORDER BY product_id, category_id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pid, cid uint64
		if err := rows.Scan(&pid, &cid); err != nil {
			return err
		}
		if p, ok := byID[pid]; ok {
			p.CategoryIDs = append(p.CategoryIDs, cid)
		}
	}
	return rows.Err()
}

// Update rewrites the product row and replaces its category links.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	ingredients, err := encodeIngredients(p.Ingredients)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET name = ?, ingredients = ?, price_cents = ?, active = ?, available = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Name, ingredients, p.PriceCents, p.Active, p.Available, p.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM product_categories WHERE product_id = ?", p.ID); err != nil {
		return err
	}
	if err := linkCategories(ctx, tx, p.ID, p.CategoryIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
