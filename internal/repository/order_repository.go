package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// OrderRepo stores orders and their line items. Line items are rewritten as
// a whole on every save, inside the same transaction as the order row.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `id, restaurant_id, table_id, assigned_waiter_id, status, subtotal_cents, tax_cents, tip_cents,
	total_cents, notes, version, created_at, updated_at`

var orderSort = map[string]string{
	"id":         "id",
	"status":     "status",
	"total":      "total_cents",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func scanOrder(s interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o      model.Order
		waiter sql.NullInt64
		notes  sql.NullString
	)
	err := s.Scan(&o.ID, &o.RestaurantID, &o.TableID, &waiter, &o.Status, &o.SubtotalCents, &o.TaxCents,
		&o.TipCents, &o.TotalCents, &notes, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.AssignedWaiterID = nullUint(waiter)
	o.Notes = notes.String
	o.Items = []model.LineItem{}
	return &o, nil
}

// Create inserts o and its items. o.ID and o.Version are set on success.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
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
		`INSERT INTO orders (restaurant_id, table_id, assigned_waiter_id, status, subtotal_cents, tax_cents, tip_cents, total_cents, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RestaurantID, o.TableID, o.AssignedWaiterID, o.Status, o.SubtotalCents, o.TaxCents, o.TipCents, o.TotalCents, o.Notes)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, uint64(id), o.Items); err != nil {
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
	*o = *got
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.LineItem) error {
	for i, it := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, position, product_id, quantity, price_cents, notes) VALUES (?, ?, ?, ?, ?, ?)",
			orderID, i, it.ProductID, it.Quantity, it.PriceCents, it.Notes); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if err != nil {
		return nil, classify(err)
	}
	if err := r.loadItems(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns one page of orders with their items.
func (r *OrderRepo) List(ctx context.Context, q OrderQuery) ([]*model.Order, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	if q.TableID != 0 {
		conds = append(conds, "table_id = ?")
		args = append(args, q.TableID)
	}
	if q.WaiterID != 0 {
		conds = append(conds, "assigned_waiter_id = ?")
		args = append(args, q.WaiterID)
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	where := whereClause(conds)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := q.Pagination.Normalize()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders"+where+orderBy(p, orderSort, "created_at DESC, id DESC")+" LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Order, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
	}
	q := "SELECT order_id, product_id, quantity, price_cents, notes FROM order_items WHERE order_id IN (?" +
		strings.Repeat(",?", len(args)-1) + ") ORDER BY order_id, position"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID uint64
			it      model.LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.PriceCents, &it.Notes); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// Update saves o if its version still matches and bumps o.Version.
// A concurrent writer yields ErrVersionConflict and nothing is written.
func (r *OrderRepo) Update(ctx context.Context, o *model.Order) error {
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
		`UPDATE orders SET assigned_waiter_id = ?, status = ?, subtotal_cents = ?, tax_cents = ?, tip_cents = ?,
		 total_cents = ?, notes = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		o.AssignedWaiterID, o.Status, o.SubtotalCents, o.TaxCents, o.TipCents, o.TotalCents, o.Notes, o.ID, o.Version)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missingOrStale(ctx, tx, "orders", o.ID)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = ?", o.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	o.Version++
	return nil
}

func (r *OrderRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
