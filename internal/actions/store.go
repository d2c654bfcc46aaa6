package actions

import (
	"context"

	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

// PollStore is implemented by polls.Repository and sqlitestore.Store.
type PollStore interface {
	InsertPoll(ctx context.Context, d polls.Draft) (polls.Poll, error)
	UpdatePoll(ctx context.Context, id string, patch polls.Patch) (polls.Poll, error)
	SetPollActive(ctx context.Context, id string, active bool) (string, error)
	DeactivateAllPolls(ctx context.Context) (int64, error)
	GetPoll(ctx context.Context, id string) (polls.Poll, error)
	ListActivePolls(ctx context.Context) ([]polls.Poll, error)
	FindPollsByQuestion(ctx context.Context, fragment string, activeOnly bool) ([]polls.Poll, error)
}

// ResponseStore is implemented by voters.Repository and sqlitestore.Store.
// InsertResponse reports a duplicate (poll, voter) pair as voters.ErrAlreadyVoted.
type ResponseStore interface {
	InsertResponse(ctx context.Context, pollID, voterID string, slot int) error
	HasVoted(ctx context.Context, pollID, voterID string) (bool, error)
	ListResponses(ctx context.Context, pollID string) ([]voters.Response, error)
}

type Store interface {
	PollStore
	ResponseStore
}

type combined struct {
	PollStore
	ResponseStore
}

// Combine joins separate poll and response repositories into one Store.
func Combine(p PollStore, r ResponseStore) Store {
	return combined{PollStore: p, ResponseStore: r}
}
