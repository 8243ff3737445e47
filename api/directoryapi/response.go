package directoryapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/storage/model"
)

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type usersResponse struct {
	statusResponse
	Users []model.User `json:"users"`
}

type userResponse struct {
	statusResponse
	User *model.User `json:"user"`
}

type loginResponse struct {
	statusResponse
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type eventsResponse struct {
	statusResponse
	Events []model.UserEvent `json:"events"`
}

func succeeded(message string) statusResponse {
	return statusResponse{
		Success: true,
		Message: message,
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(
		statusResponse{
			Success: false,
			Message: message,
		},
	)
}

// storeError maps storage errors to their http status
func storeError(c *fiber.Ctx, err error) error {
	var notFound model.NotFoundError
	if errors.As(err, &notFound) {
		return fail(c, fiber.StatusNotFound, "user not found")
	}
	var exists model.AlreadyExistsError
	if errors.As(err, &exists) {
		return fail(c, fiber.StatusConflict, "a user with this email already exists")
	}
	var invalid model.ValidationError
	if errors.As(err, &invalid) {
		return fail(c, fiber.StatusBadRequest, invalid.Error())
	}
	log.WithError(err).WithField("path", c.Path()).Error("directory store failure")
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

// parseAndValidate decodes the json body into req and validates it
func parseAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return model.ValidationError("invalid body")
	}
	return model.Validate(req)
}
