package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

type ModifierRepo struct {
	db *sql.DB
}

func NewModifierRepo(db *sql.DB) *ModifierRepo {
	return &ModifierRepo{db: db}
}

const modifierColumns = "id, restaurant_id, name, type, description, price_adjustment_cents, is_active, created_at, updated_at"

var modifierSort = map[string]string{
	"id":    "id",
	"name":  "name",
	"type":  "type",
	"price": "price_adjustment_cents",
}

func scanModifier(s interface{ Scan(...any) error }) (*model.Modifier, error) {
	var (
		m    model.Modifier
		desc sql.NullString
	)
	if err := s.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Type, &desc, &m.PriceAdjustmentCents, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Description = desc.String
	return &m, nil
}

func (r *ModifierRepo) Create(ctx context.Context, m *model.Modifier) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO modifiers (restaurant_id, name, type, description, price_adjustment_cents, is_active) VALUES (?, ?, ?, ?, ?, ?)",
		m.RestaurantID, m.Name, m.Type, m.Description, m.PriceAdjustmentCents, m.IsActive)
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
	*m = *got
	return nil
}

func (r *ModifierRepo) GetByID(ctx context.Context, id uint64) (*model.Modifier, error) {
	m, err := scanModifier(r.db.QueryRowContext(ctx, "SELECT "+modifierColumns+" FROM modifiers WHERE id = ?", id))
	if err != nil {
		return nil, classify(err)
	}
	return m, nil
}

func (r *ModifierRepo) List(ctx context.Context, q ModifierQuery) ([]*model.Modifier, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	if q.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, q.Type)
	}
	if q.Active != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *q.Active)
	}
	where := whereClause(conds)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM modifiers"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := q.Pagination.Normalize()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+modifierColumns+" FROM modifiers"+where+orderBy(p, modifierSort, "name")+" LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Modifier
	for rows.Next() {
		m, err := scanModifier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *ModifierRepo) Update(ctx context.Context, m *model.Modifier) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE modifiers SET name = ?, type = ?, description = ?, price_adjustment_cents = ?, is_active = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		m.Name, m.Type, m.Description, m.PriceAdjustmentCents, m.IsActive, m.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ModifierRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM modifiers WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
