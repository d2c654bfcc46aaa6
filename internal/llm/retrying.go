package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollmate/internal/retry"
)

// Retrying retries transient model failures. Malformed responses are returned at once.
type Retrying struct {
	next   Model
	policy retry.Policy
	log    zerolog.Logger
}

func NewRetrying(next Model, policy retry.Policy, logger zerolog.Logger) *Retrying {
	return &Retrying{next: next, policy: policy, log: logger.With().Str("component", "llm").Logger()}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (*Reply, error) {
	attempt := 0
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*Reply, error) {
		attempt++
		reply, err := r.next.Generate(ctx, req)
		if err == nil {
			return reply, nil
		}
		if errors.Is(err, ErrMalformedResponse) {
			return nil, retry.Permanent(err)
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("model call failed")
		return nil, err
	})
}
