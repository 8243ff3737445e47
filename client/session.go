package client

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Session is an authenticated session of a user
type Session struct {
	// Server is the base url the session belongs to
	Server    string     `msgpack:"server"`
	Token     string     `msgpack:"token"`
	ExpiresAt time.Time  `msgpack:"expires_at"`
	User      UserRecord `msgpack:"user"`
}

// LoggedIn reports whether the session carries a token that has not yet
// expired at now
func (s *Session) LoggedIn(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// SessionFile persists a Session between invocations
type SessionFile struct {
	path string
}

// NewSessionFile returns a SessionFile stored at path
func NewSessionFile(path string) SessionFile {
	return SessionFile{path: path}
}

// DefaultSessionPath returns the session file location below the user's
// config directory
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "userdir", "session")
}

// Path returns the location of the file
func (f SessionFile) Path() string {
	return f.path
}

// Load reads the stored session; a missing file yields a nil session
func (f SessionFile) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	var s Session
	if err = msgpack.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "corrupt session file")
	}
	return &s, nil
}

// Save stores the session, readable only by the current user
func (f SessionFile) Save(s *Session) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(f.path, data, 0o600))
}

// Remove deletes the stored session; removing a missing file is no error
func (f SessionFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}
