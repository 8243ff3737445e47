package directoryapi

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/internal/token"
	"github.com/purvisolanki/userdir/storage/model"
)

// TokenIssuer issues and verifies session tokens
type TokenIssuer interface {
	TokenVerifier
	Issue(user *model.User) (string, token.Identity, error)
	Lifetime() time.Duration
}

// sessionRevoker ends all sessions of a user
type sessionRevoker struct {
	store    model.RevocationStore
	lifetime time.Duration
}

func (sr sessionRevoker) revokeUser(c *fiber.Ctx, userID string) {
	if sr.store == nil {
		return
	}
	// tokens carry whole seconds
	now := time.Now().Truncate(time.Second)
	if err := sr.store.RevokeUser(c.UserContext(), userID, now, now.Add(sr.lifetime)); err != nil {
		log.WithError(err).WithField("user", userID).Error("could not revoke sessions of user")
	}
}

type sessionCookie struct {
	name   string
	secure bool
}

func (sc sessionCookie) set(c *fiber.Ctx, value string, expires time.Time) {
	if sc.name == "" {
		return
	}
	c.Cookie(
		&fiber.Cookie{
			Name:     sc.name,
			Value:    value,
			Path:     "/",
			Expires:  expires,
			Secure:   sc.secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		},
	)
}

func (sc sessionCookie) clear(c *fiber.Ctx) {
	sc.set(c, "", time.Unix(0, 0))
}

// registerSessions wires login, registration, logout and the self-service
// profile routes
func registerSessions(
	r fiber.Router, users model.UsersStore, tokens TokenIssuer, gate *Gate,
	revocations model.RevocationStore, cookie sessionCookie, audit *auditor,
) {
	g := r.Group("/auth")

	// serializes admin registrations so that only one of several concurrent
	// requests on an empty directory can become the first admin
	var adminRegistration sync.Mutex

	g.Post(
		"/login", func(c *fiber.Ctx) error {
			var req model.Credentials
			if err := parseAndValidate(c, &req); err != nil {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			u, err := users.Authenticate(req.Email, req.Password)
			if err != nil {
				log.WithField("email", model.NormalizeEmail(req.Email)).Info("failed login")
				return fail(c, fiber.StatusUnauthorized, "invalid email or password")
			}
			raw, id, err := tokens.Issue(u)
			if err != nil {
				log.WithError(err).Error("could not issue session token")
				return fail(c, fiber.StatusInternalServerError, "internal server error")
			}
			cookie.set(c, raw, id.ExpiresAt)
			return c.JSON(
				loginResponse{
					statusResponse: succeeded("Login successful!"),
					User:           u,
					Token:          raw,
					ExpiresAt:      id.ExpiresAt,
				},
			)
		},
	)

	g.Post(
		"/register", func(c *fiber.Ctx) error {
			var req model.UserInput
			if err := parseAndValidate(c, &req); err != nil {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			if req.Role == model.RoleAdmin {
				// Only the very first account or an authenticated admin may
				// create administrators
				adminRegistration.Lock()
				defer adminRegistration.Unlock()
				count, err := users.Count()
				if err != nil {
					return storeError(c, err)
				}
				if count > 0 {
					id, status, _ := gate.identify(c)
					if status != fiber.StatusOK || id.Role != model.RoleAdmin {
						return fail(c, fiber.StatusForbidden, "only administrators can register administrators")
					}
				}
			}
			u, err := users.Create(req)
			if err != nil {
				return storeError(c, err)
			}
			audit.record(c, model.EventTypeRegistered, u.ID, fiber.Map{"email": u.Email, "role": u.Role})
			return c.Status(fiber.StatusCreated).JSON(
				userResponse{
					statusResponse: succeeded("Successfully signed up!"),
					User:           u,
				},
			)
		},
	)

	authenticate := gate.Authenticate()

	g.Post(
		"/logout", authenticate, func(c *fiber.Ctx) error {
			id, _ := identityFrom(c)
			if revocations != nil {
				if err := revocations.Revoke(c.UserContext(), id.TokenID, id.ExpiresAt); err != nil {
					log.WithError(err).Error("could not revoke session token")
					return fail(c, fiber.StatusInternalServerError, "internal server error")
				}
			}
			cookie.clear(c)
			return c.JSON(succeeded("Logged out"))
		},
	)

	g.Get(
		"/me", authenticate, func(c *fiber.Ctx) error {
			id, _ := identityFrom(c)
			u, err := users.Get(id.UserID)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(
				userResponse{
					statusResponse: succeeded("Fetched profile"),
					User:           u,
				},
			)
		},
	)

	g.Put(
		"/profile", authenticate, func(c *fiber.Ctx) error {
			id, _ := identityFrom(c)
			var req model.ProfilePatch
			if err := parseAndValidate(c, &req); err != nil {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			u, err := users.UpdateProfile(id.UserID, req)
			if err != nil {
				return storeError(c, err)
			}
			audit.record(
				c, model.EventTypeProfileUpdated, u.ID, fiber.Map{
					"firstName": u.FirstName,
					"lastName":  u.LastName,
				},
			)
			return c.JSON(
				userResponse{
					statusResponse: succeeded("Profile updated successfully!"),
					User:           u,
				},
			)
		},
	)
}
