package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// TableRepo stores dining tables and their transfer history. Updates are
// optimistic: they only apply when the stored version equals t.Version.
type TableRepo struct {
	db *sql.DB
}

func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

const tableColumns = "id, restaurant_id, name, capacity, location, state, assigned_waiter_id, version, created_at, updated_at"

var tableSort = map[string]string{"id": "id", "name": "name", "capacity": "capacity", "state": "state"}

func scanTable(s interface{ Scan(...any) error }) (*model.Table, error) {
	var (
		t      model.Table
		waiter sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.RestaurantID, &t.Name, &t.Capacity, &t.Location, &t.State, &waiter, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.AssignedWaiterID = nullUint(waiter)
	t.TransferHistory = []model.TransferEvent{}
	return &t, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// missingOrStale tells a vanished row from a version mismatch after an
// optimistic update touched nothing.
func missingOrStale(ctx context.Context, q queryRower, table string, id uint64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if err != nil {
		return classify(err)
	}
	return ErrVersionConflict
}

func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	if t.State == "" {
		t.State = model.TableFree
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO dining_tables (restaurant_id, name, capacity, location, state, assigned_waiter_id) VALUES (?, ?, ?, ?, ?, ?)",
		t.RestaurantID, t.Name, t.Capacity, t.Location, t.State, t.AssignedWaiterID)
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
	*t = *got
	return nil
}

// GetByID returns the table with its full transfer history, oldest first.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	t, err := scanTable(r.db.QueryRowContext(ctx, "SELECT "+tableColumns+" FROM dining_tables WHERE id = ?", id))
	if err != nil {
		return nil, classify(err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT from_waiter_id, to_waiter_id, supervisor_id, transferred_at FROM table_transfers WHERE table_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ev   model.TransferEvent
			from sql.NullInt64
		)
		if err := rows.Scan(&from, &ev.ToWaiterID, &ev.SupervisorID, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.FromWaiterID = nullUint(from)
		t.TransferHistory = append(t.TransferHistory, ev)
	}
	return t, rows.Err()
}

// List returns tables without their history.
func (r *TableRepo) List(ctx context.Context, q TableQuery) ([]*model.Table, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	if q.WaiterID != 0 {
		conds = append(conds, "assigned_waiter_id = ?")
		args = append(args, q.WaiterID)
	}
	if q.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, q.State)
	}
	where := whereClause(conds)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dining_tables"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := q.Pagination.Normalize()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tableColumns+" FROM dining_tables"+where+orderBy(p, tableSort, "id")+" LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

const updateTableSQL = `UPDATE dining_tables
	SET name = ?, capacity = ?, location = ?, state = ?, assigned_waiter_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND version = ?`

type execQueryer interface {
	queryRower
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateTable(ctx context.Context, db execQueryer, t *model.Table) error {
	res, err := db.ExecContext(ctx, updateTableSQL,
		t.Name, t.Capacity, t.Location, t.State, t.AssignedWaiterID, t.ID, t.Version)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missingOrStale(ctx, db, "dining_tables", t.ID)
	}
	t.Version++
	return nil
}

// Update writes t if nobody changed it since it was read.
func (r *TableRepo) Update(ctx context.Context, t *model.Table) error {
	return updateTable(ctx, r.db, t)
}

// Transfer writes the new assignment and appends ev to the history
// atomically.
func (r *TableRepo) Transfer(ctx context.Context, t *model.Table, ev model.TransferEvent) error {
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

	if err := updateTable(ctx, tx, t); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO table_transfers (table_id, from_waiter_id, to_waiter_id, supervisor_id, transferred_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, ev.FromWaiterID, ev.ToWaiterID, ev.SupervisorID, ev.Timestamp.UTC()); err != nil {
		t.Version--
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		t.Version--
		return err
	}
	committed = true
	return nil
}

// Delete removes the table. Tables that still have orders yield ErrConflict.
func (r *TableRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM dining_tables WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
