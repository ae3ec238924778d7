package repository

import (
	"context"

	"github.com/minglehq/mingle/internal/domain"
)

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// VerifyEmail marks the named account verified and, in the same
	// transaction, deletes every unverified account sharing its email.
	// Returns the verified user and the number of siblings purged.
	VerifyEmail(ctx context.Context, username string) (*domain.User, int64, error)

	UpdateUser(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, username string, hash []byte) error
	DeleteUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error)
}
