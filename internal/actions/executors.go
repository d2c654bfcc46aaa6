package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

func (d *Dispatcher) createPoll(ctx context.Context, a catalogue.CreatePollArgs, att *Attachment) (envelope.Envelope, error) {
	draft := polls.Draft{
		Question: strings.TrimSpace(a.Question),
		Options: [polls.MaxOptions]string{
			strings.TrimSpace(a.Option1),
			strings.TrimSpace(a.Option2),
			strings.TrimSpace(deref(a.Option3)),
			strings.TrimSpace(deref(a.Option4)),
		},
		Description: strings.TrimSpace(deref(a.Description)),
		MediaURL:    strings.TrimSpace(deref(a.FileURL)),
	}
	kind := strings.TrimSpace(deref(a.FileType))

	if att != nil {
		if draft.MediaURL == "" {
			draft.MediaURL = strings.TrimSpace(att.URL)
		}
		if kind == "" {
			kind = att.Kind
		}
		if draft.Description == "" {
			draft.Description = strings.TrimSpace(att.ExtractedText)
		}
	}

	if draft.MediaURL != "" {
		mk, ok := polls.ParseMediaKind(kind)
		if !ok {
			return envelope.Envelope{}, invalid("Unsupported file type %q. Please attach an image, a PDF or a Word document.", kind)
		}
		draft.MediaKind = mk
	}

	var created polls.Poll
	err := d.gw.once(ctx, "insert poll", func(ctx context.Context, s Store) (err error) {
		created, err = s.InsertPoll(ctx, draft)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Poll(created), nil
}

func (d *Dispatcher) getPollResult(ctx context.Context) (envelope.Envelope, error) {
	var active []polls.Poll
	err := d.gw.retried(ctx, "list active polls", func(ctx context.Context, s Store) (err error) {
		active, err = s.ListActivePolls(ctx)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}

	tallies := make([]polls.Tally, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for i, p := range active {
		g.Go(func() error {
			t, err := d.tally(gctx, p)
			if err != nil {
				return err
			}
			tallies[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.PollResults(tallies), nil
}

func (d *Dispatcher) getSpecificPollResult(ctx context.Context, a catalogue.GetSpecificPollResultArgs) (envelope.Envelope, error) {
	ref := refOf(a.PollID, a.PollQuestion)
	if ref.Empty() {
		return envelope.Envelope{}, invalid("Please provide either poll ID or poll question to get specific poll results.")
	}
	p, err := d.resolver.Resolve(ctx, ref, true)
	if err != nil {
		return envelope.Envelope{}, err
	}
	t, err := d.tally(ctx, p)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.PollResults([]polls.Tally{t}), nil
}

func (d *Dispatcher) updatePoll(ctx context.Context, a catalogue.UpdatePollArgs) (envelope.Envelope, error) {
	patch := polls.Patch{
		Question: a.Question,
		Options:  [polls.MaxOptions]*string{a.Option1, a.Option2, a.Option3, a.Option4},
		Active:   a.IsActive,
	}
	if patch.Empty() {
		return envelope.Envelope{}, invalid("No fields to update were provided.")
	}
	if patch.Question != nil && strings.TrimSpace(*patch.Question) == "" {
		return envelope.Envelope{}, invalid("The poll question cannot be empty.")
	}
	for slot := 1; slot <= polls.MinOptions; slot++ {
		if o := patch.Options[slot-1]; o != nil && strings.TrimSpace(*o) == "" {
			return envelope.Envelope{}, invalid("Options 1 and 2 cannot be removed.")
		}
	}

	ref := refOf(a.PollID, a.QuestionMatch)
	if ref.Empty() {
		return envelope.Envelope{}, invalid("Please provide a poll ID or exact question to update.")
	}
	p, err := d.resolver.Resolve(ctx, ref, false)
	if err != nil {
		return envelope.Envelope{}, err
	}

	if removesOption(p, patch) {
		var rs []voters.Response
		err := d.gw.retried(ctx, "list responses", func(ctx context.Context, s Store) (err error) {
			rs, err = s.ListResponses(ctx, p.ID)
			return err
		})
		if err != nil {
			return envelope.Envelope{}, err
		}
		if len(rs) > 0 {
			return envelope.Envelope{}, invalid("Options cannot be removed from a poll that already has votes.")
		}
	}

	var updated polls.Poll
	err = d.gw.retried(ctx, "update poll", func(ctx context.Context, s Store) (err error) {
		updated, err = s.UpdatePoll(ctx, p.ID, patch)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Text(fmt.Sprintf("Poll updated successfully (id: %s).", updated.ID)), nil
}

// removesOption reports whether the patch blanks a slot that currently has text.
func removesOption(p polls.Poll, patch polls.Patch) bool {
	for i, o := range patch.Options {
		if o == nil || strings.TrimSpace(*o) != "" {
			continue
		}
		if _, populated := p.Label(i + 1); populated {
			return true
		}
	}
	return false
}

func (d *Dispatcher) deletePoll(ctx context.Context, a catalogue.DeletePollArgs) (envelope.Envelope, error) {
	ref := refOf(a.PollID, a.QuestionMatch)
	if ref.Empty() {
		return envelope.Envelope{}, invalid("Please provide a poll ID or exact question to delete.")
	}
	p, err := d.resolver.Resolve(ctx, ref, false)
	if err != nil {
		return envelope.Envelope{}, err
	}

	var id string
	err = d.gw.retried(ctx, "close poll", func(ctx context.Context, s Store) (err error) {
		id, err = s.SetPollActive(ctx, p.ID, false)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Text(fmt.Sprintf("Poll closed successfully (id: %s).", id)), nil
}

func (d *Dispatcher) deleteAllPolls(ctx context.Context, a catalogue.DeleteAllPollsArgs) (envelope.Envelope, error) {
	if !deref(a.Confirmed) {
		return envelope.Text("Closing every poll needs an explicit confirmation. Nothing was changed."), nil
	}

	var n int64
	err := d.gw.retried(ctx, "close all polls", func(ctx context.Context, s Store) (err error) {
		n, err = s.DeactivateAllPolls(ctx)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	if n == 1 {
		return envelope.Text("Closed 1 active poll."), nil
	}
	return envelope.Text(fmt.Sprintf("Closed %d active polls.", n)), nil
}

func (d *Dispatcher) votePoll(ctx context.Context, a catalogue.VotePollArgs, caller access.Caller) (envelope.Envelope, error) {
	if !caller.SignedIn() {
		return envelope.Envelope{}, ErrNotSignedIn
	}
	slot, err := strconv.Atoi(strings.TrimSpace(a.SelectedOption))
	if err != nil || slot < 1 || slot > polls.MaxOptions {
		return envelope.Envelope{}, invalid("Selected option must be 1, 2, 3, or 4.")
	}
	ref := refOf(a.PollID, a.PollQuestion)
	if ref.Empty() {
		return envelope.Envelope{}, invalid("Please provide either poll ID or poll question.")
	}

	p, err := d.resolver.Resolve(ctx, ref, true)
	if err != nil {
		return envelope.Envelope{}, err
	}
	label, ok := p.Label(slot)
	if !ok {
		return envelope.Envelope{}, invalid("Option %d is not available on this poll. Please choose one of: %s.", slot, slotList(p))
	}

	var voted bool
	err = d.gw.retried(ctx, "check vote", func(ctx context.Context, s Store) (err error) {
		voted, err = s.HasVoted(ctx, p.ID, caller.ID)
		return err
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	if voted {
		return envelope.Envelope{}, ErrConflict
	}

	err = d.gw.once(ctx, "insert response", func(ctx context.Context, s Store) error {
		return s.InsertResponse(ctx, p.ID, caller.ID, slot)
	})
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Text(fmt.Sprintf("✅ Vote submitted successfully! You voted for option %d (%s) on poll: %q", slot, label, p.Question)), nil
}

func slotList(p polls.Poll) string {
	slots := p.PopulatedSlots()
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = strconv.Itoa(s)
	}
	return strings.Join(out, ", ")
}

func (d *Dispatcher) tally(ctx context.Context, p polls.Poll) (polls.Tally, error) {
	var rs []voters.Response
	err := d.gw.retried(ctx, "list responses", func(ctx context.Context, s Store) (err error) {
		rs, err = s.ListResponses(ctx, p.ID)
		return err
	})
	if err != nil {
		return polls.Tally{}, err
	}
	return polls.Count(p, voters.Slots(rs)), nil
}
