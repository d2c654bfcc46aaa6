package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nikitkaralius/pollmate/internal/actions"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/session"
)

// HandleMessage answers private-chat messages. Group chats are ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !msg.Chat.IsPrivate() || msg.From == nil {
		return
	}
	caller := b.caller(msg.From)
	key := SessionKey(msg.Chat.ID, msg.From.ID)
	sess := b.sessions.Get(key, caller.Role, caller.Name)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "reset":
			if err := b.chat.Reset(ctx, sess, caller.Role, caller.Name); err != nil {
				b.log.Warn().Err(err).Str("session", key).Msg("reset failed")
				b.reply(msg.Chat.ID, msg.MessageID, chat.BusyReply, nil)
				return
			}
			b.reply(msg.Chat.ID, 0, session.Greeting(caller.Role), nil)
			return
		}
	}

	text := strings.TrimSpace(msg.Text)
	att, problem := b.attachment(msg)
	if problem != "" {
		b.reply(msg.Chat.ID, msg.MessageID, problem, nil)
		return
	}
	if att != nil {
		text = strings.TrimSpace(msg.Caption)
		if text == "" {
			text = "I attached a file."
		}
	}
	if text == "" {
		return
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		b.log.Debug().Err(err).Msg("chat action failed")
	}

	env := b.chat.Handle(ctx, sess, chat.Input{Text: text, Caller: caller, Attachment: att})
	b.reply(msg.Chat.ID, msg.MessageID, envelope.Render(env), voteKeyboard(env))
}

// attachment resolves a photo or document to a download URL. A non-empty problem is a message
// for the user.
func (b *Bot) attachment(msg *tgbotapi.Message) (*actions.Attachment, string) {
	var fileID, kind string
	switch {
	case len(msg.Photo) > 0:
		fileID, kind = largestPhoto(msg.Photo).FileID, "image"
	case msg.Document != nil:
		kind = documentKind(msg.Document.MimeType)
		if kind == "" {
			return nil, "Only images, PDFs and Word documents can be attached to polls."
		}
		fileID = msg.Document.FileID
	default:
		return nil, ""
	}

	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		b.log.Error().Err(err).Str("file", fileID).Msg("resolve file url failed")
		return nil, "I couldn't read that file. Please try sending it again."
	}
	return &actions.Attachment{URL: url, Kind: kind}, ""
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func documentKind(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case mime == "application/pdf":
		return "pdf"
	case mime == "application/msword",
		mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "doc"
	default:
		return ""
	}
}
