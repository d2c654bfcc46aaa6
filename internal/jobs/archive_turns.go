package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollmate/internal/session"
	"github.com/nikitkaralius/pollmate/internal/transcripts"
)

// ArchiveTurnsArgs carries the turns appended to a session during one chat turn.
type ArchiveTurnsArgs struct {
	SessionID string             `json:"session_id"`
	Turns     []transcripts.Turn `json:"turns"`
}

func (ArchiveTurnsArgs) Kind() string { return "archive_chat_turns" }

func (ArchiveTurnsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5, Queue: river.QueueDefault}
}

// TurnStore is implemented by transcripts.Repository.
type TurnStore interface {
	InsertTurns(ctx context.Context, sessionID string, turns []transcripts.Turn) error
}

type ArchiveTurnsWorker struct {
	river.WorkerDefaults[ArchiveTurnsArgs]
	store TurnStore
	log   zerolog.Logger
}

func NewArchiveTurnsWorker(store TurnStore, logger zerolog.Logger) *ArchiveTurnsWorker {
	return &ArchiveTurnsWorker{
		store: store,
		log:   logger.With().Str("component", "archive").Logger(),
	}
}

func (w *ArchiveTurnsWorker) Work(ctx context.Context, job *river.Job[ArchiveTurnsArgs]) error {
	args := job.Args
	if len(args.Turns) == 0 {
		return nil
	}
	if err := w.store.InsertTurns(ctx, args.SessionID, args.Turns); err != nil {
		return fmt.Errorf("archive session %s: %w", args.SessionID, err)
	}
	w.log.Debug().Str("session", args.SessionID).Int("turns", len(args.Turns)).Msg("archived chat turns")
	return nil
}

// RiverArchiver enqueues transcript batches for ArchiveTurnsWorker.
type RiverArchiver struct {
	client *river.Client[pgx.Tx]
}

func NewRiverArchiver(client *river.Client[pgx.Tx]) *RiverArchiver {
	return &RiverArchiver{client: client}
}

func (a *RiverArchiver) Archive(ctx context.Context, sessionID string, turns []session.Turn) error {
	if _, err := a.client.Insert(ctx, BatchArgs(sessionID, turns), nil); err != nil {
		return fmt.Errorf("enqueue archive job: %w", err)
	}
	return nil
}

// BatchArgs converts session turns into job arguments.
func BatchArgs(sessionID string, turns []session.Turn) ArchiveTurnsArgs {
	args := ArchiveTurnsArgs{SessionID: sessionID, Turns: make([]transcripts.Turn, len(turns))}
	for i, t := range turns {
		args.Turns[i] = transcripts.Turn{Seq: i, Role: string(t.Role), Content: t.Content, At: t.At.UTC()}
	}
	return args
}
