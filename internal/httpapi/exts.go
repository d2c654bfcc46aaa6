package httpapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nikitkaralius/pollmate/internal/access"
)

// Identity headers set by the gateway in front of the service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

var validation = validator.New(validator.WithRequiredStructEnabled())

func BindAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if err := validation.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func callerOf(c *fiber.Ctx) access.Caller {
	return access.Caller{
		ID:   strings.TrimSpace(c.Get(HeaderUserID)),
		Name: strings.TrimSpace(c.Get(HeaderUserName)),
		Role: access.ParseRole(c.Get(HeaderUserRole)),
	}
}
