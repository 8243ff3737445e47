package directoryapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/purvisolanki/userdir/storage/model"
)

// registerUsers wires the directory handlers onto g, which must already be
// guarded by the gate.
func registerUsers(
	g fiber.Router, users model.UsersStore, audit *auditor, revoker sessionRevoker, metrics *Metrics,
) {
	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			metrics.operation("list", err)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(
				usersResponse{
					statusResponse: succeeded("Fetched all users"),
					Users:          list,
				},
			)
		},
	)

	if audit != nil && audit.store != nil {
		g.Get(
			"/events", func(c *fiber.Ctx) error {
				limit, _ := strconv.Atoi(c.Query("limit"))
				events, err := audit.store.List(c.Query("user"), limit)
				if err != nil {
					return storeError(c, err)
				}
				return c.JSON(
					eventsResponse{
						statusResponse: succeeded("Fetched events"),
						Events:         events,
					},
				)
			},
		)
	}

	g.Post(
		"/createUser", func(c *fiber.Ctx) error {
			var req model.UserInput
			if err := parseAndValidate(c, &req); err != nil {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			u, err := users.Create(req)
			metrics.operation("create", err)
			if err != nil {
				return storeError(c, err)
			}
			audit.record(c, model.EventTypeCreated, u.ID, fiber.Map{"email": u.Email, "role": u.Role})
			return c.Status(fiber.StatusCreated).JSON(
				userResponse{
					statusResponse: succeeded("New user created successfully!"),
					User:           u,
				},
			)
		},
	)

	g.Put(
		"/updateUser/:id", func(c *fiber.Ctx) error {
			var req model.UserPatch
			if err := parseAndValidate(c, &req); err != nil {
				return fail(c, fiber.StatusBadRequest, err.Error())
			}
			prev, err := users.Get(c.Params("id"))
			if err != nil {
				metrics.operation("update", err)
				return storeError(c, err)
			}
			u, err := users.Update(prev.ID, req)
			metrics.operation("update", err)
			if err != nil {
				return storeError(c, err)
			}
			if prev.Role != u.Role {
				revoker.revokeUser(c, u.ID)
			}
			audit.record(
				c, model.EventTypeUpdated, u.ID, fiber.Map{
					"firstName": u.FirstName,
					"lastName":  u.LastName,
					"email":     u.Email,
					"role":      u.Role,
				},
			)
			return c.JSON(
				userResponse{
					statusResponse: succeeded("User updated successfully!"),
					User:           u,
				},
			)
		},
	)

	g.Delete(
		"/deleteUser/:id", func(c *fiber.Ctx) error {
			id := c.Params("id")
			err := users.Delete(id)
			metrics.operation("delete", err)
			if err != nil {
				return storeError(c, err)
			}
			revoker.revokeUser(c, id)
			audit.record(c, model.EventTypeDeleted, id, nil)
			return c.JSON(succeeded("User deleted successfully!"))
		},
	)

	g.Get(
		"/:id", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("id"))
			metrics.operation("get", err)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(
				userResponse{
					statusResponse: succeeded("Fetched user"),
					User:           u,
				},
			)
		},
	)
}
