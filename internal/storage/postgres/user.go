package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storesync/internal/domain/user"
)

const (
	userColumns = `id, login, email, password_hash, first_name, last_name, role, created_at`

	findUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	findUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	insertUserSQL = `INSERT INTO users (login, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	upsertUserMetaSQL = `INSERT INTO user_meta (user_id, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`

	listUserMetaSQL = `SELECT key, value FROM user_meta WHERE user_id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. Passwords
// are stored as bcrypt hashes only.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByEmail returns the account whose email matches case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, findUserByEmailSQL, email)
}

// FindByID returns the account with the given ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return r.findOne(ctx, findUserByIDSQL, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding user %v: %w", arg, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %v: %w", arg, err)
	}
	return &u, nil
}

// Create stores a new account with a bcrypt hash of the registration
// password and returns its ID.
func (r *UserRepository) Create(ctx context.Context, reg user.Registration) (int64, error) {
	if err := reg.Validate(); err != nil {
		return 0, err
	}

	hash, err := user.HashPassword(reg.Password)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx, insertUserSQL,
		reg.Login, reg.Email, hash, reg.FirstName, reg.LastName, reg.Role,
	).Scan(&id)
	if err != nil {
		if name, ok := constraintViolation(err, uniqueViolation); ok {
			if name == "users_email_key" {
				return 0, user.ErrEmailTaken
			}
			return 0, user.ErrLoginTaken
		}
		return 0, fmt.Errorf("creating user %q: %w", reg.Login, err)
	}
	return id, nil
}

// SetMeta stores a metadata value for the account.
func (r *UserRepository) SetMeta(ctx context.Context, id int64, key, value string) error {
	if _, err := r.pool.Exec(ctx, upsertUserMetaSQL, id, key, value); err != nil {
		return fmt.Errorf("setting meta %q of user %d: %w", key, id, err)
	}
	return nil
}

// Meta returns all metadata of the account.
func (r *UserRepository) Meta(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, listUserMetaSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing meta of user %d: %w", id, err)
	}

	meta := make(map[string]string)
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		meta[key] = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing meta of user %d: %w", id, err)
	}
	return meta, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Login, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt,
	)
	return u, err
}
