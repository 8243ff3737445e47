package directoryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/purvisolanki/userdir/internal/token"
	"github.com/purvisolanki/userdir/storage"
	"github.com/purvisolanki/userdir/storage/model"
)

const testCookieName = "userdir_session"

func newTestBackends(t *testing.T) model.Backends {
	t.Helper()
	s, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
			UsersHash: storage.Argon2idParams{
				Time:        1,
				MemoryKiB:   1024,
				Parallelism: 1,
				KeyLen:      32,
				SaltLen:     16,
			},
		},
	)
	require.NoError(t, err)
	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return s.Backends()
}

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer("userdir-test", []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	return issuer
}

func newTestApp(t *testing.T, backs model.Backends, issuer *token.Issuer) *fiber.App {
	t.Helper()
	app := fiber.New()
	require.NoError(
		t, Register(
			app.Group("/api"), "http://localhost:5000/api", backs, issuer, &Options{
				CookieName: testCookieName,
				Metrics:    NewMetrics(prometheus.NewRegistry()),
			},
		),
	)
	return app
}

type testResponse struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func doRequest(t *testing.T, app *fiber.App, method, path, bearer string, body any) testResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) testResponse {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := testResponse{
		status:  resp.StatusCode,
		cookies: resp.Cookies(),
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

// createUser stores a user directly and returns it with a session token
func createUser(t *testing.T, backs model.Backends, issuer *token.Issuer, email string, role model.Role) (
	*model.User, string,
) {
	t.Helper()
	u, err := backs.Users.Create(
		model.UserInput{
			FirstName: "Test",
			LastName:  "User",
			Email:     email,
			Password:  "password1",
			Role:      role,
		},
	)
	require.NoError(t, err)
	raw, _, err := issuer.Issue(u)
	require.NoError(t, err)
	return u, raw
}

// spyUsers counts every call that reaches the users store
type spyUsers struct {
	mu    sync.Mutex
	calls int
}

func (s *spyUsers) hit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

func (s *spyUsers) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyUsers) Count() (int64, error) {
	s.hit()
	return 0, nil
}

func (s *spyUsers) List() ([]model.User, error) {
	s.hit()
	return nil, nil
}

func (s *spyUsers) Get(string) (*model.User, error) {
	s.hit()
	return &model.User{}, nil
}

func (s *spyUsers) Create(model.UserInput) (*model.User, error) {
	s.hit()
	return &model.User{}, nil
}

func (s *spyUsers) Update(string, model.UserPatch) (*model.User, error) {
	s.hit()
	return &model.User{}, nil
}

func (s *spyUsers) UpdateProfile(string, model.ProfilePatch) (*model.User, error) {
	s.hit()
	return &model.User{}, nil
}

func (s *spyUsers) Delete(string) error {
	s.hit()
	return nil
}

func (s *spyUsers) Authenticate(string, string) (*model.User, error) {
	s.hit()
	return &model.User{}, nil
}

// memoryRevocations is an in-memory model.RevocationStore
type memoryRevocations struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	notBefore map[string]time.Time
}

func (m *memoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[jti] = until
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *memoryRevocations) RevokeUser(_ context.Context, userID string, notBefore, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notBefore == nil {
		m.notBefore = make(map[string]time.Time)
	}
	m.notBefore[userID] = notBefore
	return nil
}

func (m *memoryRevocations) RevokedBefore(_ context.Context, userID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notBefore[userID], nil
}
