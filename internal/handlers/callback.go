package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/polls"
)

const (
	voteCallbackPrefix    = "vote:"
	resultsCallbackPrefix = "results:"
)

// HandleCallback handles inline keyboard buttons. Buttons run their operation directly through
// the executor, so they pass the same authorization and validation as model requests.
func (b *Bot) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb == nil || cb.Data == "" || cb.From == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug().Err(err).Msg("answer callback failed")
	}

	req, ok := parseCallback(cb.Data)
	if !ok {
		b.log.Warn().Str("data", cb.Data).Msg("unknown callback data")
		return
	}

	env := b.executor.Execute(ctx, req, b.caller(cb.From), nil)

	var chatID int64
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	} else {
		chatID = cb.From.ID
	}
	b.reply(chatID, 0, envelope.Render(env), voteKeyboard(env))
}

func parseCallback(data string) (catalogue.ActionRequest, bool) {
	switch {
	case strings.HasPrefix(data, voteCallbackPrefix):
		pollID, slot, ok := strings.Cut(strings.TrimPrefix(data, voteCallbackPrefix), ":")
		if !ok || pollID == "" || slot == "" {
			return catalogue.ActionRequest{}, false
		}
		return catalogue.ActionRequest{Name: catalogue.OpVotePoll, Args: map[string]any{
			"poll_id": pollID, "selected_option": slot,
		}}, true
	case strings.HasPrefix(data, resultsCallbackPrefix):
		pollID := strings.TrimPrefix(data, resultsCallbackPrefix)
		if pollID == "" {
			return catalogue.ActionRequest{}, false
		}
		return catalogue.ActionRequest{Name: catalogue.OpGetSpecificPollResult, Args: map[string]any{"poll_id": pollID}}, true
	default:
		return catalogue.ActionRequest{}, false
	}
}

// voteKeyboard offers one button per option when the envelope shows exactly one active poll.
func voteKeyboard(env envelope.Envelope) *tgbotapi.InlineKeyboardMarkup {
	var p polls.Poll
	switch {
	case env.Kind == envelope.KindPoll && env.Poll != nil:
		p = *env.Poll
	case env.Kind == envelope.KindPollResults && len(env.Polls) == 1:
		p = env.Polls[0].Poll
	default:
		return nil
	}
	if !p.Active {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, slot := range p.PopulatedSlots() {
		label, _ := p.Label(slot)
		data := fmt.Sprintf("%s%s:%d", voteCallbackPrefix, p.ID, slot)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. %s", slot, label), data),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Results", resultsCallbackPrefix+p.ID),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
