// Package session keeps the per-conversation transcript the model is shown on every turn.
package session

import (
	"bytes"
	"context"
	_ "embed"
	"sync"
	"text/template"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nikitkaralius/pollmate/internal/access"
)

type TurnRole string

const (
	RoleSystem    TurnRole = "system"
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

type Turn struct {
	Role    TurnRole
	Content string
	At      time.Time
}

//go:embed prompt.tmpl
var promptText string

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

// SystemPrompt renders the opening instruction for a participant. The role only shapes the
// model's manners; permissions are enforced by access.Authorize.
func SystemPrompt(role access.Role, name string) string {
	var buf bytes.Buffer
	data := struct {
		Admin bool
		Name  string
	}{Admin: role.IsAdmin(), Name: name}
	if err := promptTemplate.Execute(&buf, data); err != nil {
		panic(err)
	}
	return buf.String()
}

// Greeting is the first message a front-end shows after a session starts or resets.
func Greeting(role access.Role) string {
	if role.IsAdmin() {
		return "What poll tasks are on your agenda today?"
	}
	return "Let's see which polls are open for voting!"
}

// Session is one ordered transcript. The transcript itself is guarded by mu; the single-slot
// semaphore serializes whole turns and is taken by the orchestrator through Lock.
type Session struct {
	id   string
	turn *semaphore.Weighted

	mu       sync.Mutex
	turns    []Turn
	lastSeen time.Time
}

// Start creates a session seeded with a system turn.
func Start(id string, role access.Role, name string) *Session {
	s := &Session{id: id, turn: semaphore.NewWeighted(1)}
	s.Reset(role, name)
	return s
}

func (s *Session) ID() string { return s.id }

// Append adds a turn to the end of the transcript.
func (s *Session) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	s.lastSeen = t.At
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Reset discards the transcript and seeds a fresh system turn.
func (s *Session) Reset(role access.Role, name string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []Turn{{Role: RoleSystem, Content: SystemPrompt(role, name), At: now}}
	s.lastSeen = now
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.lastSeen) {
		s.lastSeen = at
	}
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Lock waits until no other turn is running on this session.
func (s *Session) Lock(ctx context.Context) error {
	return s.turn.Acquire(ctx, 1)
}

func (s *Session) Unlock() {
	s.turn.Release(1)
}

// tryLock is used by the sweeper so it never evicts a session mid-turn.
func (s *Session) tryLock() bool {
	return s.turn.TryAcquire(1)
}
