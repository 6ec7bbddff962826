package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// RestaurantRepo encapsulates queries on the restaurants table.
type RestaurantRepo struct {
	db *sql.DB
}

func NewRestaurantRepo(db *sql.DB) *RestaurantRepo {
	return &RestaurantRepo{db: db}
}

const restaurantColumns = "id, name, address, schedule, billing_data, owner_id, active, created_at, updated_at"

var restaurantSort = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
}

func scanRestaurant(s interface{ Scan(...any) error }) (*model.Restaurant, error) {
	var (
		r       model.Restaurant
		billing sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Address, &r.Schedule, &billing, &r.OwnerID, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if billing.Valid {
		r.BillingData = &billing.String
	}
	return &r, nil
}

// Create inserts r and re-reads it so defaults and timestamps are populated.
func (r *RestaurantRepo) Create(ctx context.Context, rest *model.Restaurant) error {
	const q = "INSERT INTO restaurants (name, address, schedule, billing_data, owner_id, active) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, rest.Name, rest.Address, rest.Schedule.UTC(), rest.BillingData, rest.OwnerID, rest.Active)
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
	*rest = *got
	return nil
}

func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (*model.Restaurant, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+restaurantColumns+" FROM restaurants WHERE id = ?", id)
	rest, err := scanRestaurant(row)
	if err != nil {
		return nil, classify(err)
	}
	return rest, nil
}

// List returns one page of restaurants and the total count.
func (r *RestaurantRepo) List(ctx context.Context, p Pagination) ([]*model.Restaurant, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&total); err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	q := "SELECT " + restaurantColumns + " FROM restaurants" + orderBy(p, restaurantSort, "id") + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.Restaurant, 0, p.Limit)
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *RestaurantRepo) Update(ctx context.Context, rest *model.Restaurant) error {
	const q = `UPDATE restaurants
	           SET name = ?, address = ?, schedule = ?, billing_data = ?, owner_id = ?, active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, rest.Name, rest.Address, rest.Schedule.UTC(), rest.BillingData, rest.OwnerID, rest.Active, rest.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the restaurant. Orders go first: they reference tables with
// ON DELETE RESTRICT, and everything else cascades from the restaurant row.
func (r *RestaurantRepo) Delete(ctx context.Context, id uint64) error {
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE restaurant_id = ?", id); err != nil {
		return classify(err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM restaurants WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
