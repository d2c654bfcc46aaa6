// Package handlers connects Telegram updates to the chat orchestrator.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/session"
)

// maxMessageLength is Telegram's limit for one text message, in UTF-16 code units.
const maxMessageLength = 4096

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Bot struct {
	api      Sender
	chat     *chat.Orchestrator
	executor chat.Executor
	sessions *session.Manager
	isAdmin  func(userID int64) bool
	log      zerolog.Logger
}

func NewBot(api Sender, orchestrator *chat.Orchestrator, executor chat.Executor, sessions *session.Manager, isAdmin func(int64) bool, logger zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		chat:     orchestrator,
		executor: executor,
		sessions: sessions,
		isAdmin:  isAdmin,
		log:      logger.With().Str("component", "telegram").Logger(),
	}
}

// HandleUpdate dispatches one update from long polling or the webhook.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.HandleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.HandleCallback(ctx, update.CallbackQuery)
	}
}

// SessionKey identifies the conversation of one user in one chat.
func SessionKey(chatID, userID int64) string {
	return fmt.Sprintf("%d_%d", chatID, userID)
}

func (b *Bot) caller(u *tgbotapi.User) access.Caller {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	role := access.RoleUser
	if b.isAdmin(u.ID) {
		role = access.RoleAdmin
	}
	return access.Caller{ID: "tg:" + strconv.FormatInt(u.ID, 10), Name: name, Role: role}
}

func (b *Bot) reply(chatID int64, replyTo int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageLength))
	msg.ReplyToMessageID = replyTo
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("send message failed")
	}
}

// truncate cuts s to at most limit UTF-16 code units, ending with an ellipsis when cut.
func truncate(s string, limit int) string {
	if utf16Len(s) <= limit {
		return s
	}
	budget := limit - 1
	used := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if used+n > budget {
			return s[:i] + "…"
		}
		used += n
	}
	return s
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
