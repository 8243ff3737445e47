package directoryapi

import (
	"embed"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/purvisolanki/userdir/storage/model"
)

//go:embed openapi.yaml
var assets embed.FS

// Options controls optional features of the directory API registration.
type Options struct {
	// CookieName is the name of the session cookie set on login; empty
	// disables cookie sessions and only bearer tokens are accepted
	CookieName string
	// CookieSecure marks the session cookie as https only
	CookieSecure bool
	// Metrics receives gate and operation counters; may be nil
	Metrics *Metrics
}

// Register mounts all directory API routes under the provided group.
func Register(
	r fiber.Router, serverURL string, storages model.Backends, tokens TokenIssuer, opts *Options,
) error {
	if opts == nil {
		opts = &Options{}
	}
	if storages.Users == nil {
		return errors.New("directoryapi: users store is required")
	}
	if tokens == nil {
		return errors.New("directoryapi: token issuer is required")
	}

	openapiRaw, err := assets.ReadFile("openapi.yaml")
	if err != nil {
		return errors.Wrap(err, "directoryapi: failed to read openapi.yaml")
	}
	openapiData := ensureBearerSecurity(updateOpenAPIServers(openapiRaw, serverURL))
	r.Get(
		"/openapi.yaml", func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, "application/yaml")
			return c.Send(openapiData)
		},
	)

	gate := NewGate(tokens, storages.Revocations, opts.CookieName, opts.Metrics)
	audit := &auditor{store: storages.Events}
	cookie := sessionCookie{
		name:   opts.CookieName,
		secure: opts.CookieSecure,
	}

	registerSessions(r, storages.Users, tokens, gate, storages.Revocations, cookie, audit)

	// Listing and every mutation of the directory pass the same gate
	directory := r.Group("/users", gate.Authenticate(), gate.Require(model.RoleAdmin))
	revoker := sessionRevoker{
		store:    storages.Revocations,
		lifetime: tokens.Lifetime(),
	}
	registerUsers(directory, storages.Users, audit, revoker, opts.Metrics)
	return nil
}

func updateOpenAPIServers(doc []byte, serverURL string) []byte {
	if len(serverURL) == 0 {
		return doc
	}
	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		return doc
	}
	full["servers"] = []map[string]any{
		{
			"url":         serverURL,
			"description": "This instance",
		},
	}
	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}
	return res
}

// ensureBearerSecurity injects a HTTP bearer security scheme into the OpenAPI
// document, if not already present.
func ensureBearerSecurity(doc []byte) []byte {
	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		return doc
	}
	components, _ := full["components"].(map[string]any)
	if components == nil {
		components = map[string]any{}
		full["components"] = components
	}
	securitySchemes, _ := components["securitySchemes"].(map[string]any)
	if securitySchemes == nil {
		securitySchemes = map[string]any{}
		components["securitySchemes"] = securitySchemes
	}
	if _, exists := securitySchemes["bearerAuth"]; exists {
		return doc
	}
	securitySchemes["bearerAuth"] = map[string]any{
		"type":         "http",
		"scheme":       "bearer",
		"bearerFormat": "JWT",
	}
	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}
	return res
}
