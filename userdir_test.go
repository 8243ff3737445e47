package userdir

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purvisolanki/userdir/internal/token"
	"github.com/purvisolanki/userdir/internal/version"
	"github.com/purvisolanki/userdir/storage"
	"github.com/purvisolanki/userdir/storage/model"
)

func newTestServer(t *testing.T) (*httptest.Server, model.Backends, *token.Issuer) {
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

	issuer, err := token.NewIssuer("userdir-test", []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	srv, err := NewServer(
		ServerConf{ExternalURL: "https://users.example.org/"}, s.Backends(), issuer, Options{
			AccessLog:  io.Discard,
			CookieName: "userdir_session",
			Registry:   prometheus.NewRegistry(),
		},
	)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.HttpHandlerFunc())
	t.Cleanup(ts.Close)
	return ts, s.Backends(), issuer
}

func TestServerVersionHeaderAndNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/does/not/exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, version.VERSION, resp.Header.Get(HeaderVersion))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestServerOpenAPIAdvertisesExternalURL(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "https://users.example.org/api")
}

func TestServerMetrics(t *testing.T) {
	ts, backs, issuer := newTestServer(t)
	admin, err := backs.Users.Create(
		model.UserInput{
			FirstName: "Ada",
			LastName:  "Admin",
			Email:     "admin@x.com",
			Password:  "password1",
			Role:      model.RoleAdmin,
		},
	)
	require.NoError(t, err)
	raw, _, err := issuer.Issue(admin)
	require.NoError(t, err)

	// one rejected and one admitted request
	resp, err := http.Get(ts.URL + "/api/users")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Bearer realm="userdir"`, resp.Header.Get("WWW-Authenticate"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/users", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `decision="unauthorized"`)
	assert.Contains(t, string(metrics), `decision="allowed"`)
	assert.Contains(t, string(metrics), `operation="list"`)
}

func TestServerLoginRoundTrip(t *testing.T) {
	ts, backs, _ := newTestServer(t)
	_, err := backs.Users.Create(
		model.UserInput{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@x.com",
			Password:  "password1",
			Role:      model.RoleUser,
		},
	)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"email": "jane@x.com", "password": "password1"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// the session cookie is only marked secure when tls is enabled
	for _, c := range resp.Cookies() {
		if c.Name == "userdir_session" {
			assert.False(t, c.Secure)
			assert.NotEmpty(t, c.Value)
		}
	}
}
