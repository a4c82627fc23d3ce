// Package users persists account credentials and roles.
package users

import (
	"context"

	"github.com/propertyhub/docgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword replaces the stored hash. Callers bump the session
	// epoch alongside to revoke outstanding sessions.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// BumpSessionEpoch increments and returns the user's session epoch,
	// invalidating all sessions issued under earlier epochs.
	BumpSessionEpoch(ctx context.Context, id string) (int64, error)
}
