package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/dbx"
	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/models"
	"github.com/propertyhub/docgate/internal/server/repositories/repomanager"
)

// tokenBytes gives 256 bits of entropy per session token.
const tokenBytes = 32

// Identity is the resolved caller of a request: everything downstream
// authorization needs, nothing more.
type Identity struct {
	UserID string
	Role   authz.Role
}

// Service provides authentication operations:
//   - Register: create users with hashed credentials
//   - Login: verify a password and issue an opaque session
//   - Resolve: turn a bearer token back into an identity
//   - Logout: invalidate one session
//   - ChangePassword: rotate the hash and revoke all outstanding sessions
type Service struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	validity time.Duration

	// decoyHash is verified against when the user does not exist, so a
	// login miss costs the same as a wrong password and does not leak
	// account existence through timing.
	decoyHash string
}

// NewService constructs the auth service using repositories and server config.
func NewService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) (*Service, error) {
	decoy, err := HashPassword("decoy")
	if err != nil {
		return nil, fmt.Errorf("init decoy hash: %w", err)
	}
	return &Service{
		db:        db,
		repos:     repos,
		validity:  cfg.SessionValidityDuration,
		decoyHash: decoy,
	}, nil
}

// Register creates a new user with the given role. The plaintext password
// is hashed here and never stored.
func (s *Service) Register(ctx context.Context, email, password string, role authz.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{Email: email, PasswordHash: hash, Role: role}
	created, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return created, nil
}

// Login verifies the password for email and, on success, issues a new
// session bound to the user's current epoch. Bad credentials of any kind
// yield ErrUnauthenticated.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// burn the same KDF work as a real check
			VerifyPassword(password, s.decoyHash)
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrInternal
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, common.ErrUnauthenticated
	}

	return s.issueSession(ctx, user)
}

// Resolve looks up the session behind token. It returns ErrUnauthenticated
// for missing, expired, or epoch-revoked sessions. Read-only: expired rows
// are left for the sweeper.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, common.ErrUnauthenticated
	}

	session, err := s.repos.Sessions(s.db).Get(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrInternal
	}

	if session.Expired(time.Now()) {
		return nil, common.ErrUnauthenticated
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrInternal
	}
	if user.SessionEpoch != session.Epoch {
		// password changed or forced logout since issue
		return nil, common.ErrUnauthenticated
	}

	return &Identity{UserID: user.ID, Role: user.Role}, nil
}

// Logout invalidates the session for token. Unknown tokens are not an
// error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repos.Sessions(s.db).Delete(ctx, token); err != nil {
		return common.ErrInternal
	}
	return nil
}

// ChangePassword stores a fresh hash (new salt included) and bumps the
// user's session epoch in the same transaction, revoking every session
// issued before the change.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return common.ErrInternal
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		_, err := repo.BumpSessionEpoch(ctx, userID)
		return err
	})
}

// SweepExpired deletes sessions past their expiry. Intended for a periodic
// housekeeping goroutine, never the request path.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repos.Sessions(s.db).DeleteExpired(ctx, time.Now())
}

func (s *Service) issueSession(ctx context.Context, user *models.User) (*models.Session, error) {
	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, common.ErrInternal
	}

	now := time.Now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		Role:      user.Role,
		Epoch:     user.SessionEpoch,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.validity),
	}

	if err := s.repos.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, common.ErrInternal
	}
	return session, nil
}
