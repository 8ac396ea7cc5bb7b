package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tbourn/go-linkgate/internal/config"
	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// RetryPolicy bounds calls to one provider.
type RetryPolicy struct {
	MaxRetries int           // retries after the first Check attempt
	Initial    time.Duration // first backoff interval
	Max        time.Duration // backoff ceiling
	Timeout    time.Duration // deadline for each single call
}

// PolicyFrom builds a RetryPolicy from configuration.
func PolicyFrom(check config.CheckConfig, p config.ProviderConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: check.MaxRetries,
		Initial:    check.BackoffInitial,
		Max:        check.BackoffMax,
		Timeout:    p.Timeout,
	}
}

// defaultCallTimeout bounds a single provider or probe call when no timeout
// is configured.
const defaultCallTimeout = 5 * time.Second

// Retrying decorates a Provider with per-call deadlines, exponential backoff
// on transient Check failures, and call metrics. Mint is attempted once:
// a failed mint surfaces to the caller, who may simply ask again.
type Retrying struct {
	next   Provider
	policy RetryPolicy
}

// WithRetry wraps p.
func WithRetry(p Provider, policy RetryPolicy) *Retrying {
	if policy.Timeout <= 0 {
		policy.Timeout = defaultCallTimeout
	}
	if policy.Initial <= 0 {
		policy.Initial = 200 * time.Millisecond
	}
	if policy.Max < policy.Initial {
		policy.Max = policy.Initial
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Retrying{next: p, policy: policy}
}

func (r *Retrying) ID() string { return r.next.ID() }

// Mint implements Provider.
func (r *Retrying) Mint(ctx context.Context, targetURL, contentID string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()

	u, err := r.next.Mint(cctx, targetURL, contentID)
	err = deadlineError(ctx, r.ID(), err)
	observability.ProviderCalls.WithLabelValues(r.ID(), "mint", resultLabel(err)).Inc()
	return u, err
}

// Check implements Provider. Transient failures are retried up to
// MaxRetries times; the last transient error is returned on exhaustion.
func (r *Retrying) Check(ctx context.Context, shortURL, userToken string) (Completion, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.Initial
	b.MaxInterval = r.policy.Max
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	attempt := 0
	op := func() (Completion, error) {
		attempt++
		cctx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()

		c, err := r.next.Check(cctx, shortURL, userToken)
		err = deadlineError(ctx, r.ID(), err)
		observability.ProviderCalls.WithLabelValues(r.ID(), "check", resultLabel(err)).Inc()
		if err == nil {
			return c, nil
		}
		if IsTransient(err) {
			return CompletionPending, err
		}
		return CompletionPending, backoff.Permanent(err)
	}

	c, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			sysutil.Logger(ctx).Debug().
				Err(err).
				Str("provider", r.ID()).
				Int("attempt", attempt).
				Dur("next_in", next).
				Msg("provider check retry")
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return CompletionPending, ctx.Err()
		}
		if IsTransient(err) {
			return CompletionPending, fmt.Errorf("%w (after %d attempts)", err, attempt)
		}
		return CompletionPending, err
	}
	return c, nil
}

// deadlineError turns a per-call deadline into ErrProviderUnavailable while
// leaving the caller's own cancellation alone.
func deadlineError(parent context.Context, id string, err error) error {
	if err == nil || parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrProviderUnavailable) {
		return fmt.Errorf("%w: %s: deadline exceeded", ErrProviderUnavailable, id)
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "unavailable"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrLinkGone):
		return "gone"
	default:
		return "error"
	}
}
