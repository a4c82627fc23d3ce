package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/dbx"
	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/models"
	documentsrepo "github.com/propertyhub/docgate/internal/server/repositories/documents"
	sessionsrepo "github.com/propertyhub/docgate/internal/server/repositories/sessions"
	usersrepo "github.com/propertyhub/docgate/internal/server/repositories/users"
)

// --- fakes ---

type fakeUsersRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User

	updatedHash  string
	bumpedEpochs int
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	u.ID = "u-new"
	u.CreatedAt = time.Now()
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	f.updatedHash = hash
	return nil
}

func (f *fakeUsersRepo) BumpSessionEpoch(ctx context.Context, id string) (int64, error) {
	f.bumpedEpochs++
	return int64(f.bumpedEpochs), nil
}

type fakeSessionsRepo struct {
	sessions map[string]*models.Session
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) error {
	f.sessions[s.Token] = s
	return nil
}

func (f *fakeSessionsRepo) Get(ctx context.Context, token string) (*models.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for token, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSessionsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository         { return m.u }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository   { return m.s }
func (m *fakeRepoManager) Documents(db dbx.DBTX) documentsrepo.Repository { return nil }

func newFakes() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}},
		s: &fakeSessionsRepo{sessions: map[string]*models.Session{}},
	}
}

func newService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *Service {
	t.Helper()
	cfg := &config.Config{SessionValidityDuration: time.Hour}
	s, err := NewService(db, rm, cfg)
	require.NoError(t, err)
	return s
}

func seedUser(t *testing.T, rm *fakeRepoManager, email, password string, role authz.Role) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &models.User{ID: "u-1", Email: email, PasswordHash: hash, Role: role}
	rm.u.byEmail[email] = u
	rm.u.byID[u.ID] = u
	return u
}

// --- tests ---

func TestLogin_SuccessIssuesOpaqueToken(t *testing.T) {
	rm := newFakes()
	seedUser(t, rm, "admin@example.com", "hunter2hunter2", authz.RoleAdmin)
	s := newService(t, nil, rm)

	session, err := s.Login(context.Background(), "admin@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Len(t, session.Token, 64, "32 random bytes, hex encoded")
	require.Equal(t, "u-1", session.UserID)
	require.Equal(t, authz.RoleAdmin, session.Role)
	require.True(t, session.ExpiresAt.After(session.IssuedAt))
}

func TestLogin_WrongPassword(t *testing.T) {
	rm := newFakes()
	seedUser(t, rm, "admin@example.com", "right", authz.RoleAdmin)
	s := newService(t, nil, rm)

	_, err := s.Login(context.Background(), "admin@example.com", "wrong")
	require.ErrorIs(t, err, common.ErrUnauthenticated)
	require.Empty(t, rm.s.sessions, "no session on failed login")
}

func TestLogin_UnknownUserSameError(t *testing.T) {
	rm := newFakes()
	s := newService(t, nil, rm)

	_, err := s.Login(context.Background(), "ghost@example.com", "whatever")
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestResolve_RoundTrip(t *testing.T) {
	rm := newFakes()
	seedUser(t, rm, "staff@example.com", "pw-pw-pw", authz.RoleStaff)
	s := newService(t, nil, rm)

	session, err := s.Login(context.Background(), "staff@example.com", "pw-pw-pw")
	require.NoError(t, err)

	id, err := s.Resolve(context.Background(), session.Token)
	require.NoError(t, err)
	require.Equal(t, "u-1", id.UserID)
	require.Equal(t, authz.RoleStaff, id.Role)
}

func TestResolve_MissingEmptyExpired(t *testing.T) {
	rm := newFakes()
	user := seedUser(t, rm, "x@example.com", "pw-pw-pw", authz.RoleUser)
	s := newService(t, nil, rm)

	_, err := s.Resolve(context.Background(), "")
	require.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = s.Resolve(context.Background(), "unknown-token")
	require.ErrorIs(t, err, common.ErrUnauthenticated)

	rm.s.sessions["old"] = &models.Session{
		Token:     "old",
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	_, err = s.Resolve(context.Background(), "old")
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestResolve_EpochMismatchRevoked(t *testing.T) {
	rm := newFakes()
	user := seedUser(t, rm, "x@example.com", "pw-pw-pw", authz.RoleAdmin)
	s := newService(t, nil, rm)

	session, err := s.Login(context.Background(), "x@example.com", "pw-pw-pw")
	require.NoError(t, err)

	// password change bumps the user's epoch; the old session dies
	user.SessionEpoch++

	_, err = s.Resolve(context.Background(), session.Token)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestLogout_Idempotent(t *testing.T) {
	rm := newFakes()
	seedUser(t, rm, "x@example.com", "pw-pw-pw", authz.RoleAdmin)
	s := newService(t, nil, rm)

	session, err := s.Login(context.Background(), "x@example.com", "pw-pw-pw")
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background(), session.Token))
	require.NoError(t, s.Logout(context.Background(), session.Token))
	require.NoError(t, s.Logout(context.Background(), ""))

	_, err = s.Resolve(context.Background(), session.Token)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestChangePassword_UpdatesHashAndBumpsEpoch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakes()
	seedUser(t, rm, "x@example.com", "old-pw", authz.RoleAdmin)
	s := newService(t, db, rm)

	require.NoError(t, s.ChangePassword(context.Background(), "u-1", "new-pw-new-pw"))
	require.Equal(t, 1, rm.u.bumpedEpochs)
	require.True(t, VerifyPassword("new-pw-new-pw", rm.u.updatedHash))
}

func TestChangePassword_EmptyRejected(t *testing.T) {
	rm := newFakes()
	s := newService(t, nil, rm)

	err := s.ChangePassword(context.Background(), "u-1", "")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestRegister_Validation(t *testing.T) {
	rm := newFakes()
	s := newService(t, nil, rm)

	_, err := s.Register(context.Background(), "a@example.com", "pw", authz.Role("ghost"))
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Register(context.Background(), "", "pw", authz.RoleStaff)
	require.ErrorIs(t, err, common.ErrValidation)

	u, err := s.Register(context.Background(), "a@example.com", "pw", authz.RoleStaff)
	require.NoError(t, err)
	require.Equal(t, "u-new", u.ID)
	require.True(t, VerifyPassword("pw", u.PasswordHash))
}

func TestSweepExpired(t *testing.T) {
	rm := newFakes()
	s := newService(t, nil, rm)

	rm.s.sessions["dead"] = &models.Session{Token: "dead", ExpiresAt: time.Now().Add(-time.Minute)}
	rm.s.sessions["alive"] = &models.Session{Token: "alive", ExpiresAt: time.Now().Add(time.Minute)}

	n, err := s.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Contains(t, rm.s.sessions, "alive")
}
