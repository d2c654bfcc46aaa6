package actions

import (
	"context"
	"time"

	"github.com/nikitkaralius/pollmate/internal/retry"
)

// gateway runs storage calls detached from the caller's cancellation but bounded by timeout,
// so a write that was issued completes even if the turn is abandoned.
type gateway struct {
	store   Store
	timeout time.Duration
	policy  retry.Policy
}

// retried runs an idempotent call, retrying transient failures.
func (g gateway) retried(ctx context.Context, call string, fn func(ctx context.Context, s Store) error) error {
	return g.run(ctx, call, g.policy, fn)
}

// once runs a call that must not be repeated, such as an insert.
func (g gateway) once(ctx context.Context, call string, fn func(ctx context.Context, s Store) error) error {
	once := g.policy
	once.MaxAttempts = 1
	return g.run(ctx, call, once, fn)
}

func (g gateway) run(ctx context.Context, call string, policy retry.Policy, fn func(ctx context.Context, s Store) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		err := fn(ctx, g.store)
		if outcome(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err == nil || outcome(err) {
		return err
	}
	return &CollaboratorError{Call: call, Err: err}
}
