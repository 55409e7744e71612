package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/dunes-blog/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalidUser indicates a user record is missing required fields.
var ErrInvalidUser = errors.New("invalid user record")

// UserStore captures the credential store operations used by the auth gate and tooling.
// Lookups by username are exact and case-sensitive.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Close() error
}

// PrepareNew validates a user about to be inserted and fills in the generated fields.
func PrepareNew(user models.User, now time.Time) (models.User, error) {
	if strings.TrimSpace(user.Username) == "" || user.PasswordHash == "" {
		return models.User{}, ErrInvalidUser
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !models.ValidRole(user.Role) {
		return models.User{}, ErrInvalidUser
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now.UTC()
	}
	user.LastLogin = nil
	return user, nil
}
