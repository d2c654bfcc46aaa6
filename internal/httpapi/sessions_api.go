package httpapi

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/actions"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/session"
	"github.com/nikitkaralius/pollmate/internal/transcripts"
)

const maxSessionIDLength = 128

type attachmentBody struct {
	URL           string `json:"url" validate:"required,url"`
	Kind          string `json:"kind" validate:"required,oneof=image pdf doc docx"`
	ExtractedText string `json:"extractedText" validate:"max=20000"`
}

type messageBody struct {
	Text       string          `json:"text" validate:"required_without=Attachment,max=4096"`
	Attachment *attachmentBody `json:"attachment"`
}

// sessionKey scopes the URL's session id to the caller, so two callers using the same id get
// separate transcripts, and a caller whose role changes starts a new one. The user id is length
// prefixed because it may contain the separator.
func sessionKey(c *fiber.Ctx, caller access.Caller) (string, error) {
	id := strings.TrimSpace(c.Params("sessionId"))
	if id == "" || len(id) > maxSessionIDLength {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	return fmt.Sprintf("api_%s_%d:%s_%s", caller.Role, len(caller.ID), caller.ID, id), nil
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	caller := callerOf(c)
	key, err := sessionKey(c, caller)
	if err != nil {
		return err
	}

	var data messageBody
	if err := BindAndValidate(c, &data); err != nil {
		return err
	}

	in := chat.Input{Text: strings.TrimSpace(data.Text), Caller: caller}
	if data.Attachment != nil {
		in.Attachment = &actions.Attachment{
			URL:           data.Attachment.URL,
			Kind:          data.Attachment.Kind,
			ExtractedText: data.Attachment.ExtractedText,
		}
	}

	sess := s.sessions.Get(key, caller.Role, caller.Name)
	return c.JSON(s.chat.Handle(c.UserContext(), sess, in))
}

// resetSession starts the conversation over. A session that does not exist yet is left alone;
// the next message starts it fresh anyway.
func (s *Server) resetSession(c *fiber.Ctx) error {
	caller := callerOf(c)
	key, err := sessionKey(c, caller)
	if err != nil {
		return err
	}

	if sess, ok := s.sessions.Lookup(key); ok {
		if err := s.chat.Reset(c.UserContext(), sess, caller.Role, caller.Name); err != nil {
			return fiber.NewError(fiber.StatusConflict, chat.BusyReply)
		}
	}
	return c.JSON(envelope.Text(session.Greeting(caller.Role)))
}

// endSession forgets the caller's session once any turn in flight has finished.
func (s *Server) endSession(c *fiber.Ctx) error {
	key, err := sessionKey(c, callerOf(c))
	if err != nil {
		return err
	}

	sess, ok := s.sessions.Lookup(key)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	if err := sess.Lock(c.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusConflict, chat.BusyReply)
	}
	s.sessions.Drop(key)
	sess.Unlock()
	return c.SendStatus(fiber.StatusNoContent)
}

type turnsBody struct {
	Turns []transcripts.Turn `json:"turns"`
}

// listTurns returns the caller's archived transcript for the session.
func (s *Server) listTurns(c *fiber.Ctx) error {
	key, err := sessionKey(c, callerOf(c))
	if err != nil {
		return err
	}

	turns, err := s.history.ListTurns(c.UserContext(), key)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if turns == nil {
		turns = []transcripts.Turn{}
	}
	return c.JSON(turnsBody{Turns: turns})
}
