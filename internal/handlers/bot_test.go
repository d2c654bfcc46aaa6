package handlers

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/actions"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/llm"
	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/retry"
	"github.com/nikitkaralius/pollmate/internal/session"
	"github.com/nikitkaralius/pollmate/internal/sqlitestore"
)

const adminID int64 = 42

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	fileErr  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(fileID string) (string, error) {
	if f.fileErr != nil {
		return "", f.fileErr
	}
	return "https://files.example/" + fileID, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

// queued replies with the given answers in order and remembers the last request.
type queued struct {
	mu      sync.Mutex
	replies []*llm.Reply
	last    llm.Request
}

func (q *queued) Generate(_ context.Context, req llm.Request) (*llm.Reply, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.last = req
	if len(q.replies) == 0 {
		return &llm.Reply{}, nil
	}
	r := q.replies[0]
	q.replies = q.replies[1:]
	return r, nil
}

type fixture struct {
	bot      *Bot
	api      *fakeSender
	model    *queued
	sessions *session.Manager
	store    *sqlitestore.Store
}

func newFixture(t *testing.T, replies ...*llm.Reply) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlitestore.New(db)
	require.NoError(t, store.InitSchema(context.Background()))

	dispatcher := actions.NewDispatcher(store, actions.Config{
		StorageTimeout:     time.Second,
		Retry:              retry.Policy{MaxAttempts: 1},
		ResultsParallelism: 1,
	}, zerolog.Nop())

	model := &queued{replies: replies}
	api := &fakeSender{}
	sessions := session.NewManager()
	orchestrator := chat.NewOrchestrator(model, dispatcher, time.Second, zerolog.Nop())
	isAdmin := func(id int64) bool { return id == adminID }

	return &fixture{
		bot:      NewBot(api, orchestrator, dispatcher, sessions, isAdmin, zerolog.Nop()),
		api:      api,
		model:    model,
		sessions: sessions,
		store:    store,
	}
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID, FirstName: "Dana"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "-100_42", SessionKey(-100, 42))
}

func TestHandleMessage_StartGreetsByRole(t *testing.T) {
	f := newFixture(t)

	f.bot.HandleMessage(context.Background(), privateMessage(adminID, "/start"))
	assert.Equal(t, session.Greeting(access.RoleAdmin), f.api.last(t).Text)

	f.bot.HandleMessage(context.Background(), privateMessage(7, "/start"))
	assert.Equal(t, session.Greeting(access.RoleUser), f.api.last(t).Text)
}

func TestHandleMessage_ResetClearsTranscript(t *testing.T) {
	f := newFixture(t, &llm.Reply{Text: "noted"})
	ctx := context.Background()

	f.bot.HandleMessage(ctx, privateMessage(7, "remember banana"))
	sess, ok := f.sessions.Lookup(SessionKey(7, 7))
	require.True(t, ok)
	assert.Equal(t, 3, sess.Len())

	f.bot.HandleMessage(ctx, privateMessage(7, "/reset"))
	assert.Equal(t, 1, sess.Len())
}

func TestHandleMessage_IgnoresGroupChats(t *testing.T) {
	f := newFixture(t, &llm.Reply{Text: "hi"})
	msg := privateMessage(7, "hello")
	msg.Chat.Type = "group"

	f.bot.HandleMessage(context.Background(), msg)
	assert.Empty(t, f.api.sent)
	assert.Zero(t, f.sessions.Len())
}

func TestHandleMessage_CreatedPollGetsVoteButtons(t *testing.T) {
	f := newFixture(t, &llm.Reply{Actions: []catalogue.ActionRequest{{
		Name: catalogue.OpCreatePoll,
		Args: map[string]any{"question": "Lunch?", "option1": "Pizza", "option2": "Salad"},
	}}})

	f.bot.HandleMessage(context.Background(), privateMessage(adminID, "make a lunch poll"))

	sent := f.api.last(t)
	assert.Contains(t, sent.Text, "Lunch?")
	assert.Equal(t, 7, sent.ReplyToMessageID)
	markup, ok := sent.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "1. Pizza", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.True(t, strings.HasPrefix(*markup.InlineKeyboard[0][0].CallbackData, voteCallbackPrefix))
}

func TestHandleMessage_PhotoBecomesAttachment(t *testing.T) {
	f := newFixture(t, &llm.Reply{Text: "nice picture"})
	msg := privateMessage(adminID, "")
	msg.Caption = "poll about this"
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "big", Width: 800, Height: 600},
	}

	f.bot.HandleMessage(context.Background(), msg)

	turns := f.model.last.Transcript
	require.NotEmpty(t, turns)
	user := turns[len(turns)-1].Content
	assert.Contains(t, user, "poll about this")
	assert.Contains(t, user, "https://files.example/big")
	assert.Equal(t, "nice picture", f.api.last(t).Text)
}

func TestHandleMessage_UnsupportedDocument(t *testing.T) {
	f := newFixture(t)
	msg := privateMessage(7, "")
	msg.Document = &tgbotapi.Document{FileID: "zip", MimeType: "application/zip"}

	f.bot.HandleMessage(context.Background(), msg)
	assert.Contains(t, f.api.last(t).Text, "Only images, PDFs and Word documents")
}

func TestHandleMessage_FileLookupFails(t *testing.T) {
	f := newFixture(t)
	f.api.fileErr = errors.New("telegram down")
	msg := privateMessage(7, "")
	msg.Document = &tgbotapi.Document{FileID: "f", MimeType: "application/pdf"}

	f.bot.HandleMessage(context.Background(), msg)
	assert.Contains(t, f.api.last(t).Text, "couldn't read that file")
}

func TestHandleCallback_Vote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.store.InsertPoll(ctx, polls.Draft{Question: "Lunch?", Options: [polls.MaxOptions]string{"Pizza", "Salad"}})
	require.NoError(t, err)

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 7, FirstName: "Alice"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7, Type: "private"}},
		Data:    voteCallbackPrefix + p.ID + ":2",
	}
	f.bot.HandleCallback(ctx, cb)
	assert.Contains(t, f.api.last(t).Text, "You voted for option 2 (Salad)")

	f.bot.HandleCallback(ctx, cb)
	assert.Equal(t, "You have already voted on this poll.", f.api.last(t).Text)

	voted, err := f.store.HasVoted(ctx, p.ID, "tg:7")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data string
		op   string
		ok   bool
	}{
		{"vote:abc:1", catalogue.OpVotePoll, true},
		{"vote:abc", "", false},
		{"results:abc", catalogue.OpGetSpecificPollResult, true},
		{"results:", "", false},
		{"join_queue", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			req, ok := parseCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.op, req.Name)
		})
	}
}

func TestDocumentKind(t *testing.T) {
	assert.Equal(t, "image", documentKind("image/png"))
	assert.Equal(t, "pdf", documentKind("application/pdf"))
	assert.Equal(t, "doc", documentKind("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, "", documentKind("text/plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))

	// Emoji outside the BMP take two UTF-16 units each.
	assert.Equal(t, "📊📊", truncate("📊📊", 4))
	assert.Equal(t, "📊…", truncate("📊📊", 3))
	assert.Equal(t, "a…", truncate("a📊b", 3))

	long := truncate(strings.Repeat("🏆", maxMessageLength), maxMessageLength)
	assert.LessOrEqual(t, utf16Len(long), maxMessageLength)
	assert.True(t, strings.HasSuffix(long, "…"))
}
