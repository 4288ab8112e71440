package identity

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUserNotFound is returned when a referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// User is the minimal view of a platform user the order core needs: guests
// that orders are booked for and operators that place them. Authentication
// and role storage live outside this module.
type User struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Repository provides user lookups.
type Repository interface {
	GetUser(ctx context.Context, id string) (*User, error)
}
