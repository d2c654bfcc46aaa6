// Package envelope is the result shape every chat turn produces.
package envelope

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/nikitkaralius/pollmate/internal/polls"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Kind string

const (
	KindText        Kind = "text"
	KindPoll        Kind = "poll"
	KindPollResults Kind = "pollResults"
)

// Envelope is a tagged union: exactly one of Message, Poll or Polls is set, as named by Kind.
type Envelope struct {
	Kind    Kind
	Message string
	Poll    *polls.Poll
	Polls   []polls.Tally
}

// MarshalJSON writes only the payload field that belongs to Kind.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindPoll:
		return json.Marshal(struct {
			Kind Kind        `json:"kind"`
			Poll *polls.Poll `json:"poll"`
		}{e.Kind, e.Poll})
	case KindPollResults:
		ts := e.Polls
		if ts == nil {
			ts = []polls.Tally{}
		}
		return json.Marshal(struct {
			Kind  Kind          `json:"kind"`
			Polls []polls.Tally `json:"polls"`
		}{e.Kind, ts})
	default:
		return json.Marshal(struct {
			Kind    Kind   `json:"kind"`
			Message string `json:"message"`
		}{KindText, e.Message})
	}
}

// UnmarshalJSON is the inverse of MarshalJSON; it is used by API clients and tests.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind    Kind          `json:"kind"`
		Message string        `json:"message"`
		Poll    *polls.Poll   `json:"poll"`
		Polls   []polls.Tally `json:"polls"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope{Kind: raw.Kind, Message: raw.Message, Poll: raw.Poll, Polls: raw.Polls}
	return nil
}

func Text(msg string) Envelope {
	return Envelope{Kind: KindText, Message: msg}
}

func Poll(p polls.Poll) Envelope {
	return Envelope{Kind: KindPoll, Poll: &p}
}

func PollResults(ts []polls.Tally) Envelope {
	if ts == nil {
		ts = []polls.Tally{}
	}
	return Envelope{Kind: KindPollResults, Polls: ts}
}
