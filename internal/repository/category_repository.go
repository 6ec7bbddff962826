package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

const categoryColumns = "id, restaurant_id, name, created_at, updated_at"

var categorySort = map[string]string{"id": "id", "name": "name", "created_at": "created_at"}

func scanCategory(s interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	if err := s.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts c. A name already used in the restaurant yields ErrDuplicate.
func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO categories (restaurant_id, name) VALUES (?, ?)", c.RestaurantID, c.Name)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (*model.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

func (r *CategoryRepo) List(ctx context.Context, q CategoryQuery) ([]*model.Category, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	where := whereClause(conds)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := q.Pagination.Normalize()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories"+where+orderBy(p, categorySort, "name")+" LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", c.Name, c.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
