package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minglehq/mingle/internal/domain"
	"github.com/minglehq/mingle/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.UserRepository = (*Repository)(nil)

const userColumns = `id, username, email, password_hash, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

// CreateUser inserts an account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, email, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.EmailVerified, user.CreatedAt, user.UpdatedAt)
	return mapWriteErr(err)
}

// GetUserByID retrieves an account by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByUsername fetches an account by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// GetUserByEmail fetches an account by email. Verified accounts win over
// unverified registration attempts sharing the address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1
		ORDER BY email_verified DESC, created_at ASC LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// VerifyEmail flips email_verified for username and purges unverified
// duplicates sharing the email, atomically.
func (r *Repository) VerifyEmail(ctx context.Context, username string) (*domain.User, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	const update = `UPDATE users SET email_verified = TRUE, updated_at = $2
		WHERE username = $1
		RETURNING ` + userColumns
	user, err := scanUser(tx.QueryRow(ctx, update, username, time.Now().UTC()))
	if err != nil {
		return nil, 0, mapWriteErr(err)
	}

	const purge = `DELETE FROM users WHERE email = $1 AND email_verified = FALSE AND id <> $2`
	tag, err := tx.Exec(ctx, purge, user.Email, user.ID)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return user, tag.RowsAffected(), nil
}

// UpdateUser rewrites the mutable account fields.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users SET username = $2, email = $3, email_verified = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, user.ID, user.Username, user.Email, user.EmailVerified, time.Now().UTC())
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash for username.
func (r *Repository) UpdatePassword(ctx context.Context, username string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE username = $1`
	tag, err := r.pool.Exec(ctx, query, username, hash, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteUser removes an account by identifier.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SearchUsers returns accounts whose username contains query, case-insensitively.
func (r *Repository) SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE username ILIKE '%' || $1 || '%'
		ORDER BY username ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}
