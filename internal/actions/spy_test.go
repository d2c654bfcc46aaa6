package actions

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/retry"
	"github.com/nikitkaralius/pollmate/internal/sqlitestore"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

// spyStore counts calls per method and can fail chosen methods.
type spyStore struct {
	next Store

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func (s *spyStore) hit(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	return s.fail[method]
}

func (s *spyStore) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *spyStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *spyStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *spyStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

func (s *spyStore) InsertPoll(ctx context.Context, d polls.Draft) (polls.Poll, error) {
	if err := s.hit("InsertPoll"); err != nil {
		return polls.Poll{}, err
	}
	return s.next.InsertPoll(ctx, d)
}

func (s *spyStore) UpdatePoll(ctx context.Context, id string, patch polls.Patch) (polls.Poll, error) {
	if err := s.hit("UpdatePoll"); err != nil {
		return polls.Poll{}, err
	}
	return s.next.UpdatePoll(ctx, id, patch)
}

func (s *spyStore) SetPollActive(ctx context.Context, id string, active bool) (string, error) {
	if err := s.hit("SetPollActive"); err != nil {
		return "", err
	}
	return s.next.SetPollActive(ctx, id, active)
}

func (s *spyStore) DeactivateAllPolls(ctx context.Context) (int64, error) {
	if err := s.hit("DeactivateAllPolls"); err != nil {
		return 0, err
	}
	return s.next.DeactivateAllPolls(ctx)
}

func (s *spyStore) GetPoll(ctx context.Context, id string) (polls.Poll, error) {
	if err := s.hit("GetPoll"); err != nil {
		return polls.Poll{}, err
	}
	return s.next.GetPoll(ctx, id)
}

func (s *spyStore) ListActivePolls(ctx context.Context) ([]polls.Poll, error) {
	if err := s.hit("ListActivePolls"); err != nil {
		return nil, err
	}
	return s.next.ListActivePolls(ctx)
}

func (s *spyStore) FindPollsByQuestion(ctx context.Context, fragment string, activeOnly bool) ([]polls.Poll, error) {
	if err := s.hit("FindPollsByQuestion"); err != nil {
		return nil, err
	}
	return s.next.FindPollsByQuestion(ctx, fragment, activeOnly)
}

func (s *spyStore) InsertResponse(ctx context.Context, pollID, voterID string, slot int) error {
	if err := s.hit("InsertResponse"); err != nil {
		return err
	}
	return s.next.InsertResponse(ctx, pollID, voterID, slot)
}

func (s *spyStore) HasVoted(ctx context.Context, pollID, voterID string) (bool, error) {
	if err := s.hit("HasVoted"); err != nil {
		return false, err
	}
	return s.next.HasVoted(ctx, pollID, voterID)
}

func (s *spyStore) ListResponses(ctx context.Context, pollID string) ([]voters.Response, error) {
	if err := s.hit("ListResponses"); err != nil {
		return nil, err
	}
	return s.next.ListResponses(ctx, pollID)
}

func newSpyStore(t *testing.T) *spyStore {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	store := sqlitestore.New(db)
	require.NoError(t, store.InitSchema(context.Background()))
	return &spyStore{next: store, calls: map[string]int{}, fail: map[string]error{}}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *spyStore) {
	t.Helper()
	spy := newSpyStore(t)
	cfg := Config{
		StorageTimeout:     2 * time.Second,
		Retry:              retry.Policy{MaxAttempts: 3, Min: time.Millisecond, Max: 2 * time.Millisecond},
		ResultsParallelism: 2,
	}
	return NewDispatcher(spy, cfg, zerolog.Nop()), spy
}
