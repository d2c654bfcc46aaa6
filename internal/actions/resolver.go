package actions

import (
	"context"
	"errors"
	"strings"

	"github.com/nikitkaralius/pollmate/internal/polls"
)

// Reference names a poll either by id or by a fragment of its question. ID wins when both are set.
type Reference struct {
	ID       string
	Question string
}

func refOf(id, question *string) Reference {
	return Reference{ID: strings.TrimSpace(deref(id)), Question: strings.TrimSpace(deref(question))}
}

func (r Reference) Empty() bool { return r.ID == "" && r.Question == "" }

// Resolver turns a Reference into exactly one poll.
type Resolver struct {
	gw gateway
}

// Resolve looks the reference up. With activeOnly, only open polls are candidates and a closed
// poll addressed by id yields ErrPollClosed. Callers must check Reference.Empty first.
func (r Resolver) Resolve(ctx context.Context, ref Reference, activeOnly bool) (polls.Poll, error) {
	if ref.ID != "" {
		var p polls.Poll
		err := r.gw.retried(ctx, "get poll", func(ctx context.Context, s Store) (err error) {
			p, err = s.GetPoll(ctx, ref.ID)
			return err
		})
		if errors.Is(err, polls.ErrNotFound) {
			return polls.Poll{}, &NotFoundError{Reference: ref.ID, ByID: true, ActiveOnly: activeOnly}
		}
		if err != nil {
			return polls.Poll{}, err
		}
		if activeOnly && !p.Active {
			return polls.Poll{}, ErrPollClosed
		}
		return p, nil
	}

	var found []polls.Poll
	err := r.gw.retried(ctx, "find polls", func(ctx context.Context, s Store) (err error) {
		found, err = s.FindPollsByQuestion(ctx, ref.Question, activeOnly)
		return err
	})
	if err != nil {
		return polls.Poll{}, err
	}

	switch len(found) {
	case 0:
		return polls.Poll{}, &NotFoundError{Reference: ref.Question, ActiveOnly: activeOnly}
	case 1:
		return found[0], nil
	default:
		return polls.Poll{}, &AmbiguousTargetError{Fragment: ref.Question, Candidates: found}
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
