// Package actions executes the operations the model asks for: authorization, target
// resolution, storage and the translation of every outcome into a result envelope.
package actions

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollmate/internal/access"
	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/envelope"
	"github.com/nikitkaralius/pollmate/internal/retry"
)

// Attachment is a file the front-end uploaded along with the turn.
type Attachment struct {
	URL           string
	Kind          string
	ExtractedText string
}

type Config struct {
	StorageTimeout time.Duration
	Retry          retry.Policy
	// ResultsParallelism bounds concurrent tally reads in getPollResult.
	ResultsParallelism int
}

func DefaultConfig() Config {
	return Config{
		StorageTimeout:     5 * time.Second,
		Retry:              retry.DefaultPolicy(),
		ResultsParallelism: 4,
	}
}

type Dispatcher struct {
	catalogue   *catalogue.Catalogue
	gw          gateway
	resolver    Resolver
	parallelism int
	log         zerolog.Logger
}

func NewDispatcher(store Store, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultConfig().StorageTimeout
	}
	if cfg.ResultsParallelism <= 0 {
		cfg.ResultsParallelism = 1
	}
	gw := gateway{store: store, timeout: cfg.StorageTimeout, policy: cfg.Retry}
	return &Dispatcher{
		catalogue:   catalogue.Default(),
		gw:          gw,
		resolver:    Resolver{gw: gw},
		parallelism: cfg.ResultsParallelism,
		log:         logger.With().Str("component", "actions").Logger(),
	}
}

func (d *Dispatcher) Catalogue() *catalogue.Catalogue { return d.catalogue }

// Execute runs one action request for caller. It never returns an error: every failure
// becomes a text envelope. The authorization gate runs before arguments are decoded.
func (d *Dispatcher) Execute(ctx context.Context, req catalogue.ActionRequest, caller access.Caller, att *Attachment) envelope.Envelope {
	logger := d.log.With().Str("operation", req.Name).Str("caller", caller.ID).Logger()

	if _, ok := d.catalogue.Lookup(req.Name); !ok {
		logger.Warn().Msg("model requested an unknown operation")
		return envelope.Text(Describe(req.Name, &catalogue.ValidationError{Operation: req.Name, Problem: "unknown operation"}))
	}

	if err := access.Authorize(req.Name, caller.Role); err != nil {
		logger.Info().Str("role", string(caller.Role)).Msg("operation denied")
		return envelope.Text(Describe(req.Name, err))
	}

	args, err := d.catalogue.Decode(req)
	if err != nil {
		logger.Debug().Err(err).Msg("rejected arguments")
		return envelope.Text(Describe(req.Name, err))
	}

	env, err := d.run(ctx, args, caller, att)
	if err != nil {
		var collab *CollaboratorError
		if errors.As(err, &collab) {
			logger.Error().Err(err).Msg("operation failed")
		} else {
			logger.Debug().Err(err).Msg("operation refused")
		}
		return envelope.Text(Describe(req.Name, err))
	}
	logger.Info().Str("kind", string(env.Kind)).Msg("operation executed")
	return env
}

func (d *Dispatcher) run(ctx context.Context, args catalogue.Args, caller access.Caller, att *Attachment) (envelope.Envelope, error) {
	switch a := args.(type) {
	case catalogue.CreatePollArgs:
		return d.createPoll(ctx, a, att)
	case catalogue.GetPollResultArgs:
		return d.getPollResult(ctx)
	case catalogue.GetSpecificPollResultArgs:
		return d.getSpecificPollResult(ctx, a)
	case catalogue.UpdatePollArgs:
		return d.updatePoll(ctx, a)
	case catalogue.DeletePollArgs:
		return d.deletePoll(ctx, a)
	case catalogue.DeleteAllPollsArgs:
		return d.deleteAllPolls(ctx, a)
	case catalogue.VotePollArgs:
		return d.votePoll(ctx, a, caller)
	default:
		return envelope.Envelope{}, &catalogue.ValidationError{Operation: args.Operation(), Problem: "unknown operation"}
	}
}
