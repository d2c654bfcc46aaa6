// Package chat runs one conversational turn: transcript in, model decision, at most one action
// executed, envelope out.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/actions"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/llm"
	"github.com/nikitkaralius/pollmate/internal/session"
)

const (
	FallbackReply = "I didn't get that."
	ApologyReply  = "Sorry, I couldn't reach the assistant right now. Please try again in a moment."
	BusyReply     = "I'm still working on your previous message. Please try again."
)

// Executor runs a single action request. *actions.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, req catalogue.ActionRequest, caller access.Caller, att *actions.Attachment) envelope.Envelope
	Catalogue() *catalogue.Catalogue
}

// Archiver receives the turns appended during one Handle call.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, turns []session.Turn) error
}

type Input struct {
	Text       string
	Caller     access.Caller
	Attachment *actions.Attachment
}

type Orchestrator struct {
	model      llm.Model
	executor   Executor
	archiver   Archiver
	llmTimeout time.Duration
	log        zerolog.Logger
}

func NewOrchestrator(model llm.Model, executor Executor, llmTimeout time.Duration, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		model:      model,
		executor:   executor,
		llmTimeout: llmTimeout,
		log:        logger.With().Str("component", "chat").Logger(),
	}
}

// WithArchiver sets the transcript archive hook.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// Handle processes one user turn. Calls on the same session run one at a time. It never returns
// an error: failures are reported as text envelopes.
func (o *Orchestrator) Handle(ctx context.Context, sess *session.Session, in Input) envelope.Envelope {
	logger := o.log.With().Str("session", sess.ID()).Logger()

	if err := sess.Lock(ctx); err != nil {
		logger.Warn().Err(err).Msg("gave up waiting for session")
		return envelope.Text(BusyReply)
	}
	defer sess.Unlock()

	before := sess.Len()
	defer func() { o.archive(ctx, sess, before) }()

	sess.Append(session.Turn{Role: session.RoleUser, Content: annotate(in)})

	reply, err := o.generate(ctx, sess)
	if err != nil {
		logger.Error().Err(err).Msg("model call failed")
		return envelope.Text(ApologyReply)
	}

	text := strings.TrimSpace(reply.Text)
	if text != "" {
		sess.Append(session.Turn{Role: session.RoleAssistant, Content: text})
	}

	if len(reply.Actions) == 0 {
		if text == "" {
			sess.Append(session.Turn{Role: session.RoleAssistant, Content: FallbackReply})
			return envelope.Text(FallbackReply)
		}
		return envelope.Text(text)
	}

	if len(reply.Actions) > 1 {
		ignored := lo.Map(reply.Actions[1:], func(a catalogue.ActionRequest, _ int) string { return a.Name })
		logger.Debug().Strs("ignored", ignored).Msg("model requested more than one action")
	}

	return o.executor.Execute(ctx, reply.Actions[0], in.Caller, in.Attachment)
}

func (o *Orchestrator) generate(ctx context.Context, sess *session.Session) (*llm.Reply, error) {
	if o.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.llmTimeout)
		defer cancel()
	}
	reply, err := o.model.Generate(ctx, llm.Request{Transcript: sess.Turns(), Catalogue: o.executor.Catalogue()})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return &llm.Reply{}, nil
	}
	return reply, nil
}

// Reset starts the session's conversation over. It waits for any turn in flight.
func (o *Orchestrator) Reset(ctx context.Context, sess *session.Session, role access.Role, name string) error {
	if err := sess.Lock(ctx); err != nil {
		return fmt.Errorf("reset session %s: %w", sess.ID(), err)
	}
	defer sess.Unlock()

	sess.Reset(role, name)
	o.log.Info().Str("session", sess.ID()).Str("role", string(role)).Msg("session reset")
	return nil
}

func (o *Orchestrator) archive(ctx context.Context, sess *session.Session, from int) {
	if o.archiver == nil {
		return
	}
	turns := sess.Turns()
	if from >= len(turns) {
		return
	}
	if err := o.archiver.Archive(context.WithoutCancel(ctx), sess.ID(), turns[from:]); err != nil {
		o.log.Warn().Err(err).Str("session", sess.ID()).Msg("failed to archive turns")
	}
}

// annotate prefixes the user's text with who is speaking and what they attached. The prefix is
// for the model only; permissions are checked again when an action runs.
func annotate(in Input) string {
	b := strings.Builder{}
	b.WriteString("[")
	if in.Caller.Name != "" {
		b.WriteString(in.Caller.Name)
		b.WriteString(", ")
	}
	b.WriteString("role: ")
	b.WriteString(string(lo.Ternary(in.Caller.Role.IsAdmin(), access.RoleAdmin, access.RoleUser)))
	b.WriteString("]\n")
	b.WriteString(strings.TrimSpace(in.Text))

	if att := in.Attachment; att != nil && att.URL != "" {
		b.WriteString(fmt.Sprintf("\n[attached %s: %s]", lo.Ternary(att.Kind == "", "file", att.Kind), att.URL))
		if att.ExtractedText != "" {
			b.WriteString(fmt.Sprintf("\n[attachment text]\n%s", att.ExtractedText))
		}
	}
	return b.String()
}
