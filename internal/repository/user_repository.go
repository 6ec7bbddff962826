package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, name, email, password_hash, role, restaurant_id, active,
	password_changed_at, password_reset_hash, password_reset_expires, shift_started_at, created_at, updated_at`

var userSort = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
}

func scanUser(s interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u                                     model.User
		restaurantID                          sql.NullInt64
		changedAt, resetExpires, shiftStarted sql.NullTime
		resetHash                             sql.NullString
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &restaurantID, &u.Active,
		&changedAt, &resetHash, &resetExpires, &shiftStarted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.RestaurantID = nullUint(restaurantID)
	u.PasswordChangedAt = nullTime(changedAt)
	u.PasswordResetExpiry = nullTime(resetExpires)
	u.ShiftStartedAt = nullTime(shiftStarted)
	if resetHash.Valid {
		u.PasswordResetHash = &resetHash.String
	}
	return &u, nil
}

// Create inserts u with a normalized email. A taken email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, restaurant_id, active, password_changed_at) VALUES (?,?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.Role, u.RestaurantID, u.Active, u.PasswordChangedAt)
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
	*u = *got
	return nil
}

// GetByID fetches a user and their closed shifts.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, classify(err)
	}
	if u.Shifts, err = r.shifts(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// GetByResetHash fetches the user holding an unexpired reset token hash.
func (r *UserRepo) GetByResetHash(ctx context.Context, hash string, now time.Time) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE password_reset_hash=? AND password_reset_expires > ? LIMIT 1",
		hash, now.UTC()))
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context, q UserQuery) ([]*model.User, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.RestaurantID != 0 {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, q.RestaurantID)
	}
	if q.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, q.Role)
	}
	where := whereClause(conds)

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := q.Pagination.Normalize()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+orderBy(p, userSort, "id")+" LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*model.User, 0, p.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes every mutable column of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, password_hash=?, role=?, restaurant_id=?, active=?,
		 password_changed_at=?, password_reset_hash=?, password_reset_expires=?, shift_started_at=?
		 WHERE id=?`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.RestaurantID, u.Active,
		u.PasswordChangedAt, u.PasswordResetHash, u.PasswordResetExpiry, u.ShiftStartedAt, u.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseShift records s and clears the open shift in one transaction.
func (r *UserRepo) CloseShift(ctx context.Context, userID uint64, s model.Shift) error {
	tx, err := r.DB.BeginTx(ctx, nil)
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
		"UPDATE users SET shift_started_at=NULL WHERE id=? AND shift_started_at IS NOT NULL", userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO waiter_shifts (user_id, shift_date, started_at, ended_at, duration_minutes) VALUES (?,?,?,?,?)",
		userID, s.Date, s.Start, s.End, s.DurationMinutes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) shifts(ctx context.Context, userID uint64) ([]model.Shift, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT started_at, ended_at, duration_minutes FROM waiter_shifts WHERE user_id=? ORDER BY started_at", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Shift
	for rows.Next() {
		var s model.Shift
		if err := rows.Scan(&s.Start, &s.End, &s.DurationMinutes); err != nil {
			return nil, err
		}
		s.Date = s.Start.UTC().Format("2006-01-02")
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullUint(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
