// Package token issues and verifies the signed session credentials presented
// to the directory API.
package token

import (
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/pkg/errors"

	"github.com/purvisolanki/userdir/storage/model"
)

const claimRole = "role"

// Identity is the authenticated principal carried by a session token
type Identity struct {
	UserID    string
	Role      model.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies HMAC-protected session tokens
type Issuer struct {
	issuer   string
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates a new Issuer; the secret must be at least 32 bytes long
func NewIssuer(issuer string, secret []byte, lifetime time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &Issuer{
		issuer:   issuer,
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Lifetime returns the lifetime of issued tokens
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Issue creates a signed token for the passed user
func (i *Issuer) Issue(user *model.User) (string, Identity, error) {
	now := i.now().Truncate(time.Second)
	id := Identity{
		UserID:    user.ID,
		Role:      user.Role,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.lifetime),
	}
	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		Subject(id.UserID).
		JwtID(id.TokenID).
		IssuedAt(id.IssuedAt).
		Expiration(id.ExpiresAt).
		Claim(claimRole, string(id.Role)).
		Build()
	if err != nil {
		return "", Identity{}, errors.Wrap(err, "could not build token")
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.secret))
	if err != nil {
		return "", Identity{}, errors.Wrap(err, "could not sign token")
	}
	return string(signed), id, nil
}

// Verify checks signature, issuer and expiry of the token and returns the
// Identity it carries
func (i *Issuer) Verify(raw string) (Identity, error) {
	tok, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), i.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return Identity{}, errors.Wrap(err, "invalid token")
	}
	var id Identity
	var ok bool
	if id.UserID, ok = tok.Subject(); !ok || id.UserID == "" {
		return Identity{}, errors.New("invalid token: missing subject")
	}
	if id.TokenID, ok = tok.JwtID(); !ok || id.TokenID == "" {
		return Identity{}, errors.New("invalid token: missing token id")
	}
	if id.IssuedAt, ok = tok.IssuedAt(); !ok {
		return Identity{}, errors.New("invalid token: missing issued at")
	}
	if id.ExpiresAt, ok = tok.Expiration(); !ok {
		return Identity{}, errors.New("invalid token: missing expiration")
	}
	var role string
	if err = tok.Get(claimRole, &role); err != nil {
		return Identity{}, errors.Wrap(err, "invalid token: missing role")
	}
	id.Role = model.Role(role)
	if !id.Role.Valid() {
		return Identity{}, errors.Errorf("invalid token: unknown role '%s'", role)
	}
	return id, nil
}
