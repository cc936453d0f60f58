package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/title-reviews/internal/model"
)

// UserRepo persists users.  Username and email are unique at the schema
// level, so concurrent duplicate inserts fail with ErrConflict.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, role, bio, first_name, last_name, is_superuser, confirmation_code, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.Bio, &u.FirstName, &u.LastName,
		&u.IsSuperuser, &u.ConfirmationHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts u and populates its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (username, email, role, bio, first_name, last_name, is_superuser, confirmation_code)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, u.Username, strings.ToLower(u.Email), string(u.Role),
		u.Bio, u.FirstName, u.LastName, u.IsSuperuser, u.ConfirmationHash)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.Email = strings.ToLower(u.Email)
	return nil
}

func (r *UserRepo) getBy(ctx context.Context, column string, arg interface{}) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE " + column + " = ? LIMIT 1"
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// List returns one page of users ordered by username, optionally filtered
// by a username substring, together with the total match count.
func (r *UserRepo) List(ctx context.Context, search string, page model.Page) ([]*model.User, int, error) {
	where, args := "", []interface{}{}
	if search != "" {
		where = ` WHERE LOWER(username) LIKE LOWER(?)`
		args = append(args, likePattern(search))
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "SELECT " + userColumns + " FROM users" + where + " ORDER BY username LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the profile fields and role of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	const q = `UPDATE users
	           SET username = ?, email = ?, role = ?, bio = ?, first_name = ?, last_name = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, u.Username, strings.ToLower(u.Email), string(u.Role),
		u.Bio, u.FirstName, u.LastName, u.ID)
	return translate(err)
}

// SetConfirmationHash replaces the stored confirmation code hash.  An empty
// hash clears it.
func (r *UserRepo) SetConfirmationHash(ctx context.Context, id uint64, hash string) error {
	const q = `UPDATE users SET confirmation_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, hash, id)
	return err
}

// ConsumeConfirmationHash clears the stored hash only if it still equals
// hash.  It reports false when another exchange or a re-registration got
// there first, so a code can be used at most once.
func (r *UserRepo) ConsumeConfirmationHash(ctx context.Context, id uint64, hash string) (bool, error) {
	const q = `UPDATE users SET confirmation_code = '', updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND confirmation_code = ? AND confirmation_code <> ''`
	res, err := r.db.ExecContext(ctx, q, id, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
