package httpapi

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

func (s *Server) telegramWebhook(c *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := jsoniter.Unmarshal(c.Body(), &update); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s.telegram.HandleUpdate(c.UserContext(), update)
	return c.SendStatus(fiber.StatusOK)
}
