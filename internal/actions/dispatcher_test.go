package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/polls"
)

var (
	admin = access.Caller{ID: "admin-1", Name: "Dana", Role: access.RoleAdmin}
	alice = access.Caller{ID: "alice", Name: "Alice", Role: access.RoleUser}
	bob   = access.Caller{ID: "bob", Name: "Bob", Role: access.RoleUser}
	guest = access.Caller{Role: access.RoleUser}
)

func call(name string, args map[string]any) catalogue.ActionRequest {
	return catalogue.ActionRequest{Name: name, Args: args}
}

func mustCreate(t *testing.T, d *Dispatcher, question string, options ...string) polls.Poll {
	t.Helper()
	args := map[string]any{"question": question}
	for i, o := range options {
		args[[]string{"option1", "option2", "option3", "option4"}[i]] = o
	}
	env := d.Execute(context.Background(), call(catalogue.OpCreatePoll, args), admin, nil)
	require.Equal(t, envelope.KindPoll, env.Kind, env.Message)
	return *env.Poll
}

func TestExecute_LunchScenario(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	created := d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{
		"question": "Lunch?", "option1": "Pizza", "option2": "Salad",
	}), admin, nil)
	require.Equal(t, envelope.KindPoll, created.Kind)
	assert.Equal(t, "Lunch?", created.Poll.Question)
	assert.Equal(t, "Pizza", created.Poll.Option1)
	assert.Equal(t, "Salad", created.Poll.Option2)
	assert.True(t, created.Poll.Active)

	vote := d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{
		"poll_question": "Lunch", "selected_option": "1",
	}), alice, nil)
	require.Equal(t, envelope.KindText, vote.Kind)
	assert.Contains(t, vote.Message, "You voted for option 1")

	res := d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_question": "Lunch"}), bob, nil)
	require.Equal(t, envelope.KindPollResults, res.Kind)
	require.Len(t, res.Polls, 1)
	tally := res.Polls[0]
	assert.Equal(t, 1, tally.TotalVotes)
	require.Len(t, tally.Options, 2)
	assert.Equal(t, 1, tally.Options[0].Votes)
	assert.InDelta(t, 100.0, tally.Options[0].Percentage, 1e-9)
	assert.InDelta(t, 0.0, tally.Options[1].Percentage, 1e-9)
}

func TestExecute_GateRunsBeforeStorage(t *testing.T) {
	for _, op := range []string{catalogue.OpCreatePoll, catalogue.OpUpdatePoll, catalogue.OpDeletePoll, catalogue.OpDeleteAllPolls} {
		t.Run(op, func(t *testing.T) {
			d, spy := newTestDispatcher(t)
			// Arguments are deliberately malformed: the gate must answer before decoding.
			env := d.Execute(context.Background(), call(op, map[string]any{"bogus": 1}), alice, nil)
			require.Equal(t, envelope.KindText, env.Kind)
			assert.Contains(t, env.Message, "not authorized")
			assert.Zero(t, spy.total())
		})
	}
}

func TestExecute_UnknownOperation(t *testing.T) {
	d, spy := newTestDispatcher(t)
	env := d.Execute(context.Background(), call("dropDatabase", nil), admin, nil)
	assert.Equal(t, "Unknown function call.", env.Message)
	assert.Zero(t, spy.total())
}

func TestExecute_DecodingFailsClosed(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	mustCreate(t, d, "Lunch?", "Pizza", "Salad")
	spy.reset()

	env := d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_question": "Lunch", "selected_option": 1}), alice, nil)
	assert.Equal(t, envelope.KindText, env.Kind)
	assert.Contains(t, env.Message, "selected_option")
	assert.Zero(t, spy.total())

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_question": "Lunch"}), alice, nil)
	assert.Equal(t, "Please provide the selected option (1, 2, 3, or 4).", env.Message)

	env = d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{"question": "Q", "option1": "a"}), admin, nil)
	assert.Equal(t, "A poll needs a question and at least two options.", env.Message)
	assert.Zero(t, spy.total())
}

func TestCreatePoll_Media(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	att := &Attachment{URL: "https://cdn.example/menu.docx", Kind: "docx", ExtractedText: "This week's menu"}
	env := d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{
		"question": "Lunch?", "option1": "Pizza", "option2": "Salad",
	}), admin, att)
	require.Equal(t, envelope.KindPoll, env.Kind)
	assert.Equal(t, "https://cdn.example/menu.docx", env.Poll.MediaURL)
	assert.Equal(t, polls.MediaDoc, env.Poll.MediaKind)
	assert.Equal(t, "This week's menu", env.Poll.Description)

	env = d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{
		"question": "Lunch?", "option1": "Pizza", "option2": "Salad",
		"file_url": "https://cdn.example/x.mp4", "file_type": "video",
	}), admin, nil)
	require.Equal(t, envelope.KindText, env.Kind)
	assert.Contains(t, env.Message, "Unsupported file type")
}

func TestGetPollResult(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	env := d.Execute(ctx, call(catalogue.OpGetPollResult, nil), alice, nil)
	require.Equal(t, envelope.KindPollResults, env.Kind)
	assert.Empty(t, env.Polls)

	lunch := mustCreate(t, d, "Lunch?", "Pizza", "Salad", "Soup")
	dinner := mustCreate(t, d, "Dinner?", "Steak", "Fish")
	closed := mustCreate(t, d, "Breakfast?", "Eggs", "Toast")
	d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"poll_id": closed.ID}), admin, nil)

	d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": lunch.ID, "selected_option": "3"}), alice, nil)
	d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": lunch.ID, "selected_option": "3"}), bob, nil)

	env = d.Execute(ctx, call(catalogue.OpGetPollResult, nil), alice, nil)
	require.Equal(t, envelope.KindPollResults, env.Kind)
	require.Len(t, env.Polls, 2)
	assert.Equal(t, dinner.ID, env.Polls[0].ID)
	assert.Equal(t, 0, env.Polls[0].TotalVotes)
	assert.Equal(t, lunch.ID, env.Polls[1].ID)
	assert.Equal(t, 2, env.Polls[1].TotalVotes)
	assert.Equal(t, 2, env.Polls[1].Options[2].Votes)
}

func TestGetSpecificPollResult_Resolution(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()

	first := mustCreate(t, d, "Team lunch Friday?", "Yes", "No")
	second := mustCreate(t, d, "Lunch budget?", "10", "20")

	env := d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_question": "lunch"}), alice, nil)
	require.Equal(t, envelope.KindText, env.Kind)
	assert.Contains(t, env.Message, `Multiple polls match "lunch"`)
	assert.Contains(t, env.Message, first.ID)
	assert.Contains(t, env.Message, second.ID)

	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_question": "budget"}), alice, nil)
	require.Equal(t, envelope.KindPollResults, env.Kind)
	assert.Equal(t, second.ID, env.Polls[0].ID)

	// An explicit id wins over the fragment.
	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_id": first.ID, "poll_question": "budget"}), alice, nil)
	require.Equal(t, envelope.KindPollResults, env.Kind)
	assert.Equal(t, first.ID, env.Polls[0].ID)

	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_question": "dinner"}), alice, nil)
	assert.Equal(t, `No active poll found matching "dinner". Please check the question text or use the poll ID.`, env.Message)

	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_id": "nope"}), alice, nil)
	assert.Equal(t, "Poll not found.", env.Message)

	d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"poll_id": first.ID}), admin, nil)
	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_id": first.ID}), alice, nil)
	assert.Equal(t, "This poll is no longer active.", env.Message)

	spy.reset()
	env = d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, nil), alice, nil)
	assert.Contains(t, env.Message, "Please provide either poll ID or poll question")
	assert.Zero(t, spy.total())
}

func TestAmbiguousTarget_DoesNotMutate(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	mustCreate(t, d, "Lunch Monday?", "a", "b")
	mustCreate(t, d, "Lunch Tuesday?", "a", "b")
	spy.reset()

	env := d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"question_match": "lunch"}), admin, nil)
	assert.Contains(t, env.Message, "Multiple polls match")

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_question": "lunch", "selected_option": "1"}), alice, nil)
	assert.Contains(t, env.Message, "Multiple polls match")

	assert.Zero(t, spy.count("SetPollActive"))
	assert.Zero(t, spy.count("InsertResponse"))
	assert.Zero(t, spy.count("UpdatePoll"))
}

func TestDeletePoll_Idempotent(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	p := mustCreate(t, d, "Lunch?", "a", "b")

	for i := 0; i < 2; i++ {
		env := d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"poll_id": p.ID}), admin, nil)
		assert.Equal(t, "Poll closed successfully (id: "+p.ID+").", env.Message)
	}
	// Closed polls are still found by question for admins.
	env := d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"question_match": "lunch"}), admin, nil)
	assert.Equal(t, "Poll closed successfully (id: "+p.ID+").", env.Message)
}

func TestDeleteAllPolls(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	mustCreate(t, d, "A?", "x", "y")
	mustCreate(t, d, "B?", "x", "y")

	for _, args := range []map[string]any{nil, {"confirmed": false}} {
		spy.reset()
		env := d.Execute(ctx, call(catalogue.OpDeleteAllPolls, args), admin, nil)
		require.Equal(t, envelope.KindText, env.Kind)
		assert.Contains(t, env.Message, "Nothing was changed")
		assert.Zero(t, spy.total())
	}

	res := d.Execute(ctx, call(catalogue.OpGetPollResult, nil), admin, nil)
	assert.Len(t, res.Polls, 2)

	env := d.Execute(ctx, call(catalogue.OpDeleteAllPolls, map[string]any{"confirmed": true}), admin, nil)
	assert.Equal(t, "Closed 2 active polls.", env.Message)

	res = d.Execute(ctx, call(catalogue.OpGetPollResult, nil), admin, nil)
	assert.Empty(t, res.Polls)
}

func TestVotePoll(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	p := mustCreate(t, d, "Lunch?", "Pizza", "Salad", "Soup")

	spy.reset()
	env := d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": p.ID, "selected_option": "1"}), guest, nil)
	assert.Equal(t, "You must be logged in to vote.", env.Message)
	assert.Zero(t, spy.total())

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": p.ID, "selected_option": "4"}), alice, nil)
	assert.Contains(t, env.Message, "Option 4 is not available")
	assert.Contains(t, env.Message, "1, 2, 3")

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": p.ID, "selected_option": "five"}), alice, nil)
	assert.Equal(t, "Selected option must be 1, 2, 3, or 4.", env.Message)

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": p.ID, "selected_option": "2"}), alice, nil)
	assert.Equal(t, `✅ Vote submitted successfully! You voted for option 2 (Salad) on poll: "Lunch?"`, env.Message)

	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_question": "lunch", "selected_option": "1"}), alice, nil)
	assert.Equal(t, "You have already voted on this poll.", env.Message)

	d.Execute(ctx, call(catalogue.OpDeletePoll, map[string]any{"poll_id": p.ID}), admin, nil)
	env = d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_question": "lunch", "selected_option": "1"}), bob, nil)
	assert.Contains(t, env.Message, "No active poll found")

	res := d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"poll_id": p.ID, "is_active": true}), admin, nil)
	require.Contains(t, res.Message, "Poll updated successfully")
	tally := d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_id": p.ID}), bob, nil)
	require.Len(t, tally.Polls, 1)
	assert.Equal(t, 1, tally.Polls[0].TotalVotes)
}

func TestUpdatePoll(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	p := mustCreate(t, d, "Lunch?", "Pizza", "Salad", "Soup")

	spy.reset()
	env := d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"poll_id": p.ID}), admin, nil)
	assert.Equal(t, "No fields to update were provided.", env.Message)
	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"poll_id": p.ID, "option1": " "}), admin, nil)
	assert.Equal(t, "Options 1 and 2 cannot be removed.", env.Message)
	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"question": "New?"}), admin, nil)
	assert.Contains(t, env.Message, "Please provide a poll ID")
	assert.Zero(t, spy.total())

	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"question_match": "lunch", "question": "Lunch today?", "option4": "Curry"}), admin, nil)
	assert.Equal(t, "Poll updated successfully (id: "+p.ID+").", env.Message)

	res := d.Execute(ctx, call(catalogue.OpGetSpecificPollResult, map[string]any{"poll_id": p.ID}), alice, nil)
	require.Len(t, res.Polls, 1)
	assert.Equal(t, "Lunch today?", res.Polls[0].Question)
	assert.Len(t, res.Polls[0].Options, 4)

	// Removing a slot is fine until somebody votes.
	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"poll_id": p.ID, "option4": ""}), admin, nil)
	assert.Contains(t, env.Message, "Poll updated successfully")

	d.Execute(ctx, call(catalogue.OpVotePoll, map[string]any{"poll_id": p.ID, "selected_option": "3"}), alice, nil)
	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"poll_id": p.ID, "option3": ""}), admin, nil)
	assert.Equal(t, "Options cannot be removed from a poll that already has votes.", env.Message)

	env = d.Execute(ctx, call(catalogue.OpUpdatePoll, map[string]any{"question_match": "dinner", "question": "x"}), admin, nil)
	assert.Equal(t, `No poll found matching "dinner". Please check the question text or use the poll ID.`, env.Message)
}

func TestStorageFailures(t *testing.T) {
	d, spy := newTestDispatcher(t)
	ctx := context.Background()
	down := errors.New("connection refused")

	spy.failOn("ListActivePolls", down)
	env := d.Execute(ctx, call(catalogue.OpGetPollResult, nil), alice, nil)
	assert.Equal(t, "Failed to fetch poll results. Please try again.", env.Message)
	assert.Equal(t, 3, spy.count("ListActivePolls"))

	spy.failOn("InsertPoll", down)
	env = d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{"question": "Q", "option1": "a", "option2": "b"}), admin, nil)
	assert.Equal(t, "Failed to create poll. Please try again.", env.Message)
	assert.Equal(t, 1, spy.count("InsertPoll"))
}

func TestExecute_CallerCancellationDoesNotAbortWrite(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := d.Execute(ctx, call(catalogue.OpCreatePoll, map[string]any{"question": "Q", "option1": "a", "option2": "b"}), admin, nil)
	require.Equal(t, envelope.KindPoll, env.Kind)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		op   string
		err  error
		want string
	}{
		{"denied", catalogue.OpDeleteAllPolls, ErrNotAuthorized, "❌ You are not authorized to delete polls."},
		{"collaborator", catalogue.OpVotePoll, &CollaboratorError{Call: "insert response", Err: errors.New("x")}, "Failed to submit vote. Please try again."},
		{"unknown op collaborator", "x", errors.New("x"), "Something went wrong. Please try again."},
		{"ambiguous", catalogue.OpVotePoll, &AmbiguousTargetError{Fragment: "l", Candidates: []polls.Poll{{ID: "1", Question: "A"}, {ID: "2", Question: "B"}}},
			"Multiple polls match \"l\". Please be more specific or use the poll ID:\n\n• \"A\" (ID: 1)\n• \"B\" (ID: 2)"},
		{"decoding", catalogue.OpUpdatePoll, &catalogue.ValidationError{Operation: "updatePoll", Param: "is_active", Problem: "must be a boolean"}, "I couldn't run updatePoll: is_active must be a boolean."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.op, tt.err))
		})
	}
}
