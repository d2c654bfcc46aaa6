package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

var (
	ErrNotAuthorized = access.ErrNotAuthorized
	ErrNotFound      = polls.ErrNotFound
	ErrConflict      = voters.ErrAlreadyVoted
	ErrNotSignedIn   = errors.New("caller is not signed in")
	ErrPollClosed    = errors.New("poll is no longer active")
)

// ValidationError is a request the executors refuse. Message is shown to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is a poll reference that matched nothing.
type NotFoundError struct {
	Reference  string
	ByID       bool
	ActiveOnly bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no poll matches %q", e.Reference)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AmbiguousTargetError is a question fragment that matched more than one poll.
type AmbiguousTargetError struct {
	Fragment   string
	Candidates []polls.Poll
}

func (e *AmbiguousTargetError) Error() string {
	return fmt.Sprintf("%d polls match %q", len(e.Candidates), e.Fragment)
}

// CollaboratorError is a storage failure or timeout.
type CollaboratorError struct {
	Call string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Call, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// outcome reports errors that are answers rather than failures and must not be retried.
func outcome(err error) bool {
	return errors.Is(err, polls.ErrNotFound) || errors.Is(err, voters.ErrAlreadyVoted)
}

var deniedVerb = map[string]string{
	catalogue.OpCreatePoll:     "create polls",
	catalogue.OpUpdatePoll:     "update polls",
	catalogue.OpDeletePoll:     "delete polls",
	catalogue.OpDeleteAllPolls: "delete polls",
}

var failedVerb = map[string]string{
	catalogue.OpCreatePoll:            "create poll",
	catalogue.OpGetPollResult:         "fetch poll results",
	catalogue.OpGetSpecificPollResult: "fetch poll results",
	catalogue.OpUpdatePoll:            "update poll",
	catalogue.OpDeletePoll:            "delete poll",
	catalogue.OpDeleteAllPolls:        "close polls",
	catalogue.OpVotePoll:              "submit vote",
}

// Describe turns an executor error into the text shown to the caller.
func Describe(op string, err error) string {
	var (
		validation *ValidationError
		decoding   *catalogue.ValidationError
		notFound   *NotFoundError
		ambiguous  *AmbiguousTargetError
	)
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return fmt.Sprintf("❌ You are not authorized to %s.", deniedVerb[op])
	case errors.Is(err, ErrNotSignedIn):
		return "You must be logged in to vote."
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &decoding):
		return describeDecoding(decoding)
	case errors.As(err, &ambiguous):
		return describeAmbiguous(ambiguous)
	case errors.As(err, &notFound):
		return describeNotFound(notFound)
	case errors.Is(err, ErrNotFound):
		return "Poll not found."
	case errors.Is(err, ErrPollClosed):
		return "This poll is no longer active."
	case errors.Is(err, ErrConflict):
		return "You have already voted on this poll."
	default:
		verb, ok := failedVerb[op]
		if !ok {
			return "Something went wrong. Please try again."
		}
		return fmt.Sprintf("Failed to %s. Please try again.", verb)
	}
}

func describeDecoding(e *catalogue.ValidationError) string {
	switch {
	case e.Problem == "unknown operation":
		return "Unknown function call."
	case e.Operation == catalogue.OpVotePoll && e.Param == "selected_option" && e.Problem == "is required":
		return "Please provide the selected option (1, 2, 3, or 4)."
	case e.Operation == catalogue.OpCreatePoll && e.Problem == "is required":
		return "A poll needs a question and at least two options."
	case e.Param != "":
		return fmt.Sprintf("I couldn't run %s: %s %s.", e.Operation, e.Param, e.Problem)
	default:
		return fmt.Sprintf("I couldn't run %s: %s.", e.Operation, e.Problem)
	}
}

func describeNotFound(e *NotFoundError) string {
	if e.ByID {
		return "Poll not found."
	}
	scope := "poll"
	if e.ActiveOnly {
		scope = "active poll"
	}
	return fmt.Sprintf("No %s found matching %q. Please check the question text or use the poll ID.", scope, e.Reference)
}

func describeAmbiguous(e *AmbiguousTargetError) string {
	lines := make([]string, len(e.Candidates))
	for i, p := range e.Candidates {
		lines[i] = fmt.Sprintf("• %q (ID: %s)", p.Question, p.ID)
	}
	return fmt.Sprintf("Multiple polls match %q. Please be more specific or use the poll ID:\n\n%s",
		e.Fragment, strings.Join(lines, "\n"))
}
