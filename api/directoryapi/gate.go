package directoryapi

import (
	"strings"

	arrays "github.com/adam-hanna/arrayOperations"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/internal/token"
	"github.com/purvisolanki/userdir/storage/model"
)

const localsIdentity = "userdir.identity"

// TokenVerifier verifies session tokens
type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// Gate is the access gate in front of the directory store. It authenticates
// the session credential of a request and then checks the role of the
// authenticated identity. Neither step touches the users store: the role is
// the one carried by the token. Sessions of users that were deleted or
// changed role are ended through the revocation store; without one they
// stay valid until they expire.
type Gate struct {
	tokens      TokenVerifier
	revocations model.RevocationStore
	cookieName  string
	metrics     *Metrics
}

// NewGate creates a new Gate; revocations may be nil
func NewGate(tokens TokenVerifier, revocations model.RevocationStore, cookieName string, metrics *Metrics) *Gate {
	return &Gate{
		tokens:      tokens,
		revocations: revocations,
		cookieName:  cookieName,
		metrics:     metrics,
	}
}

// credential extracts the raw session token from the Authorization header,
// falling back to the session cookie
func (g *Gate) credential(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}
	if g.cookieName != "" {
		return c.Cookies(g.cookieName)
	}
	return ""
}

// identify returns the identity of the request if it carries a valid,
// non-revoked credential. The returned message describes why not.
func (g *Gate) identify(c *fiber.Ctx) (id token.Identity, status int, message string) {
	raw := g.credential(c)
	if raw == "" {
		return id, fiber.StatusUnauthorized, "missing credentials"
	}
	id, err := g.tokens.Verify(raw)
	if err != nil {
		log.WithError(err).Debug("rejected session token")
		return id, fiber.StatusUnauthorized, "invalid credentials"
	}
	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(c.UserContext(), id.TokenID)
		if err != nil {
			log.WithError(err).Error("could not check token revocation")
			return id, fiber.StatusInternalServerError, "internal server error"
		}
		if revoked {
			return id, fiber.StatusUnauthorized, "session has ended"
		}
		notBefore, err := g.revocations.RevokedBefore(c.UserContext(), id.UserID)
		if err != nil {
			log.WithError(err).Error("could not check user revocation")
			return id, fiber.StatusInternalServerError, "internal server error"
		}
		if !notBefore.IsZero() && !id.IssuedAt.After(notBefore) {
			return id, fiber.StatusUnauthorized, "session has ended"
		}
	}
	return id, fiber.StatusOK, ""
}

// Authenticate requires a valid session credential
func (g *Gate) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, status, message := g.identify(c)
		if status != fiber.StatusOK {
			if status == fiber.StatusUnauthorized {
				g.metrics.gateDecision(decisionUnauthorized)
				c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="userdir"`)
			}
			return fail(c, status, message)
		}
		c.Locals(localsIdentity, id)
		return c.Next()
	}
}

// Require only lets requests pass whose authenticated role is one of roles.
// It must be mounted after Authenticate.
func (g *Gate) Require(roles ...model.Role) fiber.Handler {
	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = string(r)
	}
	return func(c *fiber.Ctx) error {
		id, ok := identityFrom(c)
		if !ok {
			g.metrics.gateDecision(decisionUnauthorized)
			return fail(c, fiber.StatusUnauthorized, "missing credentials")
		}
		if len(arrays.Intersect([]string{string(id.Role)}, required)) == 0 {
			g.metrics.gateDecision(decisionForbidden)
			log.WithFields(
				log.Fields{
					"user": id.UserID,
					"role": id.Role,
					"path": c.Path(),
				},
			).Info("access denied")
			return fail(c, fiber.StatusForbidden, "insufficient permissions")
		}
		g.metrics.gateDecision(decisionAllowed)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) (token.Identity, bool) {
	id, ok := c.Locals(localsIdentity).(token.Identity)
	return id, ok
}
