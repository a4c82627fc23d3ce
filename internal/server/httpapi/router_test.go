package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/propertyhub/docgate/internal/common"
	"github.com/propertyhub/docgate/internal/dbx"
	"github.com/propertyhub/docgate/internal/logging"
	"github.com/propertyhub/docgate/internal/server/auth"
	"github.com/propertyhub/docgate/internal/server/authz"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/documents"
	"github.com/propertyhub/docgate/internal/server/models"
	documentsrepo "github.com/propertyhub/docgate/internal/server/repositories/documents"
	sessionsrepo "github.com/propertyhub/docgate/internal/server/repositories/sessions"
	usersrepo "github.com/propertyhub/docgate/internal/server/repositories/users"
	"github.com/propertyhub/docgate/internal/server/storage"
)

// --- in-memory repositories ---

type memUsersRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	nextID  int
}

func (f *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.nextID++
	u.ID = "u-" + string(rune('0'+f.nextID))
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *memUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *memUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *memUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *memUsersRepo) BumpSessionEpoch(ctx context.Context, id string) (int64, error) {
	u, ok := f.byID[id]
	if !ok {
		return 0, common.ErrNotFound
	}
	u.SessionEpoch++
	return u.SessionEpoch, nil
}

type memSessionsRepo struct {
	sessions map[string]*models.Session
}

func (f *memSessionsRepo) Create(ctx context.Context, s *models.Session) error {
	f.sessions[s.Token] = s
	return nil
}

func (f *memSessionsRepo) Get(ctx context.Context, token string) (*models.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, common.ErrNotFound
}

func (f *memSessionsRepo) Delete(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *memSessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type memDocumentsRepo struct {
	byID   map[string]*models.Document
	nextID int
}

func (f *memDocumentsRepo) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	f.nextID++
	doc.ID = "d-" + string(rune('0'+f.nextID))
	doc.CreatedAt = time.Now()
	f.byID[doc.ID] = doc
	return doc, nil
}

func (f *memDocumentsRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if doc, ok := f.byID[id]; ok {
		return doc, nil
	}
	return nil, common.ErrNotFound
}

func (f *memDocumentsRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	var out []*models.Document
	for _, doc := range f.byID {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

type memRepoManager struct {
	users    *memUsersRepo
	sessions *memSessionsRepo
	docs     *memDocumentsRepo
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository         { return m.users }
func (m *memRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository   { return m.sessions }
func (m *memRepoManager) Documents(db dbx.DBTX) documentsrepo.Repository { return m.docs }

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		users:    &memUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}},
		sessions: &memSessionsRepo{sessions: map[string]*models.Session{}},
		docs:     &memDocumentsRepo{byID: map[string]*models.Document{}},
	}
}

// --- fixture ---

type apiFixture struct {
	router  http.Handler
	authSvc *auth.Service
	rm      *memRepoManager
	root    string
}

func newAPIFixture(t *testing.T, db *sql.DB) *apiFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxUploadBytes = 1 << 10
	cfg.UploadsRoot = t.TempDir()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	rm := newMemRepoManager()

	authSvc, err := auth.NewService(db, rm, cfg)
	require.NoError(t, err)

	local, err := storage.NewLocalBackend(cfg.UploadsRoot)
	require.NoError(t, err)
	router := storage.NewRouter(nil, local, 1, time.Second, logger)
	streamer := storage.NewStreamer(nil, local, time.Second)

	docsSvc := documents.NewService(db, rm, router, streamer, cfg, logger)
	handler := NewHandler(authSvc, docsSvc, cfg, logger)

	return &apiFixture{
		router:  NewRouter(handler),
		authSvc: authSvc,
		rm:      rm,
		root:    cfg.UploadsRoot,
	}
}

func (fx *apiFixture) register(t *testing.T, email, password string, role authz.Role) {
	t.Helper()
	_, err := fx.authSvc.Register(context.Background(), email, password, role)
	require.NoError(t, err)
}

// loginCookie performs a real login round trip and returns the session cookie.
func (fx *apiFixture) loginCookie(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == common.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in login response")
	return nil
}

func multipartBody(t *testing.T, owner, title, filename, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	require.NoError(t, mw.WriteField("owner", owner))
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (fx *apiFixture) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealthz_NoAuthRequired(t *testing.T) {
	fx := newAPIFixture(t, nil)
	rec := fx.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)

	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "wrong"})
	rec := fx.do(httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body)), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	fx := newAPIFixture(t, nil)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/documents?owner=r-1", nil), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(httptest.NewRequest(http.MethodGet, "/api/documents?owner=r-1", nil),
		&http.Cookie{Name: common.SessionCookieName, Value: "forged"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	content := []byte("%PDF-1.7 lease")
	body, contentType := multipartBody(t, "resident-7", "Lease", "lease.pdf", "application/pdf", content)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := fx.do(req, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "local", created.RefKind)
	require.Equal(t, int64(len(content)), created.SizeBytes)

	rec = fx.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+created.ID+"/content", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="lease.pdf"`)
	require.Equal(t, content, rec.Body.Bytes())
}

func TestUpload_StaffForbidden(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "staff@example.com", "correct-horse", authz.RoleStaff)
	cookie := fx.loginCookie(t, "staff@example.com", "correct-horse")

	body, contentType := multipartBody(t, "resident-7", "Lease", "lease.pdf", "application/pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := fx.do(req, cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpload_OversizeRejected(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	body, contentType := multipartBody(t, "resident-7", "Big", "big.pdf", "application/pdf", make([]byte, (1<<10)+1))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := fx.do(req, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadInvoice_PDFOnly(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	body, contentType := multipartBody(t, "resident-7", "Photo", "photo.png", "image/png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", body)
	req.Header.Set("Content-Type", contentType)
	rec := fx.do(req, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadByPath_TraversalForbidden(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/files/..%2F..%2Fetc%2Fpasswd", nil), cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDownload_UnknownID(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/documents/ghost/content", nil), cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	fx := newAPIFixture(t, nil)
	fx.register(t, "admin@example.com", "correct-horse", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "correct-horse")

	rec := fx.do(httptest.NewRequest(http.MethodPost, "/api/logout", nil), cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.do(httptest.NewRequest(http.MethodGet, "/api/documents?owner=r-1", nil), cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_RevokesCurrentSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	fx := newAPIFixture(t, db)
	fx.register(t, "admin@example.com", "old-password", authz.RoleAdmin)
	cookie := fx.loginCookie(t, "admin@example.com", "old-password")

	body := strings.NewReader(`{"new_password":"brand-new-password"}`)
	rec := fx.do(httptest.NewRequest(http.MethodPost, "/api/password", body), cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.do(httptest.NewRequest(http.MethodGet, "/api/documents?owner=r-1", nil), cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "epoch bump must revoke the old session")

	cookie = fx.loginCookie(t, "admin@example.com", "brand-new-password")
	rec = fx.do(httptest.NewRequest(http.MethodGet, "/api/documents?owner=r-1", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
}
