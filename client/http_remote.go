package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/internal/version"
)

// DefaultTimeout bounds every remote call unless configured otherwise
const DefaultTimeout = 30 * time.Second

// Config configures the client side of the directory
type Config struct {
	// BaseURL is the root url of the server, e.g. http://localhost:5000
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each remote call; zero means DefaultTimeout
	Timeout time.Duration `yaml:"timeout"`
	// SessionFile is where the session token is persisted
	SessionFile string `yaml:"session_file"`
}

// envelope is the response body of every api call
type envelope struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Users     []UserRecord `json:"users"`
	User      *UserRecord  `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// HTTPRemote talks to the directory api over http
type HTTPRemote struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPRemote creates a new HTTPRemote; logger may be nil
func NewHTTPRemote(conf Config, logger log.FieldLogger) *HTTPRemote {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(conf.BaseURL, "/")).
		SetTimeout(timeout).
		SetLogger(logger).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "userdir-client/"+version.VERSION)
	return &HTTPRemote{client: c}
}

// SetToken sets the session token sent with every request
func (r *HTTPRemote) SetToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// Token returns the current session token
func (r *HTTPRemote) Token() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token
}

func (r *HTTPRemote) do(
	ctx context.Context, op, method, path string, pathParams map[string]string, body any,
) (*envelope, error) {
	req := r.client.R().SetContext(ctx)
	if token := r.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &Error{
			Kind:    TransportFailure,
			Op:      op,
			Message: err.Error(),
			Err:     err,
		}
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	if !resp.IsSuccess() {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &Error{
			Kind:    kindForStatus(resp.StatusCode()),
			Status:  resp.StatusCode(),
			Op:      op,
			Message: msg,
		}
	}
	if decodeErr != nil {
		return nil, &Error{
			Kind:    ValidationFailure,
			Status:  resp.StatusCode(),
			Op:      op,
			Message: "malformed response body",
			Err:     decodeErr,
		}
	}
	if !env.Success {
		return nil, &Error{
			Kind:    ValidationFailure,
			Status:  resp.StatusCode(),
			Op:      op,
			Message: "response not marked successful: " + env.Message,
		}
	}
	return &env, nil
}

func (r *HTTPRemote) userResult(ctx context.Context, op, method, path string, params map[string]string, body any) (
	UserRecord, error,
) {
	env, err := r.do(ctx, op, method, path, params, body)
	if err != nil {
		return UserRecord{}, err
	}
	if err = checkRecord(op, env.User); err != nil {
		return UserRecord{}, err
	}
	return *env.User, nil
}

// List fetches all users
func (r *HTTPRemote) List(ctx context.Context) ([]UserRecord, error) {
	env, err := r.do(ctx, "list", http.MethodGet, "/api/users", nil, nil)
	if err != nil {
		return nil, err
	}
	for i := range env.Users {
		if err = checkRecord("list", &env.Users[i]); err != nil {
			return nil, err
		}
	}
	if env.Users == nil {
		env.Users = []UserRecord{}
	}
	return env.Users, nil
}

// Get fetches a single user
func (r *HTTPRemote) Get(ctx context.Context, id string) (UserRecord, error) {
	return r.userResult(ctx, "get", http.MethodGet, "/api/users/{id}", map[string]string{"id": id}, nil)
}

// Create creates a user
func (r *HTTPRemote) Create(ctx context.Context, draft UserInput) (UserRecord, error) {
	return r.userResult(ctx, "create", http.MethodPost, "/api/users/createUser", nil, draft)
}

// Update replaces the names, email and role of a user
func (r *HTTPRemote) Update(ctx context.Context, id string, patch UserPatch) (UserRecord, error) {
	return r.userResult(
		ctx, "update", http.MethodPut, "/api/users/updateUser/{id}", map[string]string{"id": id}, patch,
	)
}

// Delete deletes a user
func (r *HTTPRemote) Delete(ctx context.Context, id string) error {
	_, err := r.do(ctx, "delete", http.MethodDelete, "/api/users/deleteUser/{id}", map[string]string{"id": id}, nil)
	return err
}

// Login authenticates with email and password. On success the returned
// session's token is used for all further requests.
func (r *HTTPRemote) Login(ctx context.Context, email, password string) (*Session, error) {
	env, err := r.do(
		ctx, "login", http.MethodPost, "/api/auth/login", nil, map[string]string{
			"email":    email,
			"password": password,
		},
	)
	if err != nil {
		return nil, err
	}
	if err = checkRecord("login", env.User); err != nil {
		return nil, err
	}
	if env.Token == "" {
		return nil, &Error{
			Kind:    ValidationFailure,
			Op:      "login",
			Message: "response carries no token",
		}
	}
	r.SetToken(env.Token)
	return &Session{
		Token:     env.Token,
		ExpiresAt: env.ExpiresAt,
		User:      *env.User,
	}, nil
}

// Register signs up a new user
func (r *HTTPRemote) Register(ctx context.Context, draft UserInput) (UserRecord, error) {
	return r.userResult(ctx, "register", http.MethodPost, "/api/auth/register", nil, draft)
}

// Logout ends the current session on the server and forgets the token
func (r *HTTPRemote) Logout(ctx context.Context) error {
	_, err := r.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil)
	r.SetToken("")
	return err
}

// Me fetches the authenticated user
func (r *HTTPRemote) Me(ctx context.Context) (UserRecord, error) {
	return r.userResult(ctx, "me", http.MethodGet, "/api/auth/me", nil, nil)
}

// UpdateProfile changes the names of the authenticated user
func (r *HTTPRemote) UpdateProfile(ctx context.Context, patch ProfilePatch) (UserRecord, error) {
	return r.userResult(ctx, "profile", http.MethodPut, "/api/auth/profile", nil, patch)
}
