package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/nikitkaralius/pollmate/internal/actions"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/chat"
	"github.com/nikitkaralius/pollmate/internal/config"
	"github.com/nikitkaralius/pollmate/internal/jobs"
	"github.com/nikitkaralius/pollmate/internal/llm"
	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/retry"
	"github.com/nikitkaralius/pollmate/internal/session"
	"github.com/nikitkaralius/pollmate/internal/sqlitestore"
	"github.com/nikitkaralius/pollmate/internal/transcripts"
	"github.com/nikitkaralius/pollmate/internal/utils"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

// stack is everything a command needs to run chat turns.
type stack struct {
	dispatcher   *actions.Dispatcher
	orchestrator *chat.Orchestrator
	sessions     *session.Manager

	// river and history are nil on SQLite.
	river   *river.Client[pgx.Tx]
	history *transcripts.Repository

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func retryPolicy(cfg config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Min:         cfg.Retry.MinDelay,
		Max:         cfg.Retry.MaxDelay,
	}
}

func buildStack(ctx context.Context, cfg config.Config) (*stack, error) {
	if err := utils.SetDisplayLocation(cfg.Display.Timezone); err != nil {
		return nil, err
	}

	s := &stack{sessions: session.NewManager()}

	store, err := s.openStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	actionsCfg := actions.DefaultConfig()
	actionsCfg.StorageTimeout = cfg.Storage.Timeout
	actionsCfg.Retry = retryPolicy(cfg)
	s.dispatcher = actions.NewDispatcher(store, actionsCfg, log.Logger)

	model, err := newModel(ctx, cfg, s.dispatcher.Catalogue())
	if err != nil {
		s.Close()
		return nil, err
	}

	s.orchestrator = chat.NewOrchestrator(model, s.dispatcher, cfg.LLM.Timeout, log.Logger)
	if s.river != nil {
		s.orchestrator.WithArchiver(jobs.NewRiverArchiver(s.river))
	}
	return s, nil
}

func (s *stack) openStore(ctx context.Context, cfg config.Config) (actions.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		db, err := sql.Open("sqlite3", cfg.Storage.SQLitePath+"?_busy_timeout=5000&_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })

		store := sqlitestore.New(db)
		if err := store.InitSchema(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Storage.SQLitePath).Msg("Using sqlite storage, transcripts are not archived")
		return store, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create pgx pool: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		s.history = transcripts.NewRepository(pool)

		workers := river.NewWorkers()
		river.AddWorker(workers, jobs.NewArchiveTurnsWorker(s.history, log.Logger))
		s.river, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 10},
			},
			Workers: workers,
		})
		if err != nil {
			return nil, fmt.Errorf("create river client: %w", err)
		}
		return actions.Combine(polls.NewRepository(pool), voters.NewRepository(pool)), nil
	}
}

func newModel(ctx context.Context, cfg config.Config, cat *catalogue.Catalogue) (llm.Model, error) {
	var (
		model llm.Model
		err   error
	)
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		model, err = llm.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Model, cat)
	default:
		model, err = llm.NewClient(ctx, cfg.LLM.OpenAIAPIKey, cfg.LLM.Model, cat)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.LLM.Provider, err)
	}
	return llm.NewRetrying(model, retryPolicy(cfg), log.Logger), nil
}
