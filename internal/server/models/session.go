package models

import (
	"time"

	"github.com/propertyhub/docgate/internal/server/authz"
)

// Session is a server-side record backing an opaque bearer token. The token
// carries no claims of its own; everything is looked up here per request.
type Session struct {
	// Token is the opaque, high-entropy bearer value (hex, 32 random bytes).
	Token  string
	UserID string
	Role   authz.Role
	// Epoch is the owner's SessionEpoch at issue time. A session resolves
	// only while it still matches the user's current epoch.
	Epoch     int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
