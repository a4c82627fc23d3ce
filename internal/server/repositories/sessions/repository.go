// Package sessions persists the server-side records behind opaque session
// tokens.
package sessions

import (
	"context"
	"time"

	"github.com/propertyhub/docgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error

	// Get returns the session for token, expired or not; expiry policy
	// belongs to the auth service.
	Get(ctx context.Context, token string) (*models.Session, error)

	Delete(ctx context.Context, token string) error

	// DeleteExpired removes sessions that expired before now and returns
	// how many were removed. Housekeeping only; never on the request path.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
