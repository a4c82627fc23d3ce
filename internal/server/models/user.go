// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/propertyhub/docgate/internal/server/authz"
)

// User is an account that can authenticate against the gateway.
type User struct {
	ID string
	// Email doubles as the login name.
	Email string
	// PasswordHash is the encoded scrypt hash ("hex(salt):hex(key)").
	// It is only ever compared in constant time.
	PasswordHash string
	// Role determines what the authorization gate admits.
	Role authz.Role
	// SessionEpoch invalidates outstanding sessions when incremented
	// (password change, forced logout everywhere).
	SessionEpoch int64
	CreatedAt    time.Time
}
