package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkstays/booking/internal/domain/identity"
)

const getUserSQL = `SELECT id, name, email, phone FROM users WHERE id = $1`

var _ identity.Repository = (*UserRepository)(nil)

// UserRepository provides user lookups backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetUser returns a single user by its identifier.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*identity.User, error) {
	var u identity.User
	err := r.pool.QueryRow(ctx, getUserSQL, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}
