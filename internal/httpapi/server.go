// Package httpapi exposes the chat orchestrator over HTTP.
package httpapi

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/session"
	"github.com/nikitkaralius/pollmate/internal/transcripts"
)

// TurnHistory reads archived transcripts. *transcripts.Repository implements it.
type TurnHistory interface {
	ListTurns(ctx context.Context, sessionID string) ([]transcripts.Turn, error)
}

// UpdateHandler receives Telegram updates posted to the webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

type Server struct {
	app      *fiber.App
	chat     *chat.Orchestrator
	sessions *session.Manager
	telegram UpdateHandler
	history  TurnHistory
	log      zerolog.Logger
}

// NewServer builds the fiber app. telegram may be nil, in which case the webhook route is not
// mounted.
func NewServer(orchestrator *chat.Orchestrator, sessions *session.Manager, telegram UpdateHandler, logger zerolog.Logger) *Server {
	s := &Server{
		chat:     orchestrator,
		sessions: sessions,
		telegram: telegram,
		log:      logger.With().Str("component", "http").Logger(),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "pollmate",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler:          s.handleError,
	})
	s.mapControllers()
	return s
}

func (s *Server) mapControllers() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := s.app.Group("/api")
	{
		sessions := api.Group("/sessions/:sessionId")
		sessions.Post("/messages", s.postMessage)
		sessions.Post("/reset", s.resetSession)
		api.Delete("/sessions/:sessionId", s.endSession)
	}

	if s.telegram != nil {
		s.app.Post("/telegram/webhook", s.telegramWebhook)
	}
}

// WithHistory mounts GET /api/sessions/:sessionId/turns backed by the transcript archive.
func (s *Server) WithHistory(h TurnHistory) *Server {
	s.history = h
	s.app.Get("/api/sessions/:sessionId/turns", s.listTurns)
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(errorBody{Error: err.Error()})
}
