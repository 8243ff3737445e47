package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"
)

// AuthConf configures session tokens and the initial administrator.
//
// YAML example:
//
//	auth:
//	  secret_file: /run/secrets/userdir_token_secret
//	  token_lifetime: 12h
//	  cookie_name: userdir_session
//	  bootstrap_admin:
//	    email: admin@example.org
//	    password: change-me-please
type AuthConf struct {
	Issuer string `yaml:"issuer"`
	// Secret signs the session tokens; at least 32 bytes
	Secret string `yaml:"secret"`
	// SecretFile is read into Secret if Secret is not set
	SecretFile     string                  `yaml:"secret_file"`
	TokenLifetime  duration.DurationOption `yaml:"token_lifetime"`
	CookieName     string                  `yaml:"cookie_name"`
	BootstrapAdmin BootstrapAdminConf      `yaml:"bootstrap_admin"`
}

// BootstrapAdminConf describes an administrator that is created on startup
// if the directory has no users yet
type BootstrapAdminConf struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
}

// Enabled reports whether a bootstrap admin is configured
func (b BootstrapAdminConf) Enabled() bool {
	return b.Email != ""
}

func (c *AuthConf) validate() error {
	if c.Secret == "" && c.SecretFile != "" {
		data, err := os.ReadFile(c.SecretFile)
		if err != nil {
			return errors.Wrap(err, "could not read token secret file")
		}
		c.Secret = strings.TrimSpace(string(data))
	}
	if len(c.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes long")
	}
	if c.TokenLifetime.Duration() <= 0 {
		return errors.New("token_lifetime must be positive")
	}
	if c.BootstrapAdmin.Enabled() && len(c.BootstrapAdmin.Password) < 8 {
		return errors.New("bootstrap admin password must be at least 8 characters")
	}
	return nil
}

var defaultAuthConf = AuthConf{
	Issuer:        "userdir",
	TokenLifetime: duration.DurationOption(12 * time.Hour),
	CookieName:    "userdir_session",
	BootstrapAdmin: BootstrapAdminConf{
		FirstName: "Admin",
		LastName:  "Admin",
	},
}
