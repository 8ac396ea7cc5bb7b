// Package services – GateService
//
// This file implements GateService, the gate engine. RequestAccess issues a
// monetized short link for a (user, content) pair, idempotently while a
// pending or unexpired completed record exists. Verify asks the record's
// provider whether the user finished the ad flow and, on the first observed
// completion only, signals the unlock dispatcher.
//
// All ledger reads and writes for one pair run under the ledger's key lock.
// Completion checks are network calls and run outside it; their result is
// discarded when the record left pending in the meantime.
//
// Observability: public methods are OpenTelemetry-instrumented and counted in
// the gate_* Prometheus collectors.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-linkgate/internal/abuse"
	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/provider"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// GateLedger is the ledger contract used by GateService; *repo.Ledger
// satisfies it.
type GateLedger interface {
	WithKey(ctx context.Context, userID, contentID string, fn func(ctx context.Context) error) error
	WithUser(ctx context.Context, userID string, fn func(ctx context.Context) error) error
	Upsert(ctx context.Context, rec *domain.GateRecord) error
	Find(ctx context.Context, userID, contentID string) (*domain.GateRecord, error)
	FindByToken(ctx context.Context, token string) (*domain.GateRecord, error)
	Transition(ctx context.Context, rec *domain.GateRecord, to domain.GateState) error
	RecordCheck(ctx context.Context, rec *domain.GateRecord) error
	MarkSignaled(ctx context.Context, rec *domain.GateRecord) error
}

// ProviderSet picks and resolves providers; *provider.Registry satisfies it.
type ProviderSet interface {
	Select() provider.Provider
	Get(id string) (provider.Provider, bool)
	Direct() provider.Provider
}

// Dispatcher receives unlock signals; *UnlockDispatcher satisfies it.
type Dispatcher interface {
	Deliver(ctx context.Context, userID, contentID string) (DeliveryResult, error)
}

// Outcome is the user-facing result of Verify.
type Outcome string

const (
	Unlocked    Outcome = "unlocked"
	StillLocked Outcome = "still_locked"
)

// VerifyResult reports a verification.
type VerifyResult struct {
	Outcome Outcome
	Record  *domain.GateRecord
	// Delivery is set only on the call that observed completion.
	Delivery *DeliveryResult
}

// GateService orchestrates issuance and verification.
type GateService struct {
	Ledger     GateLedger
	Providers  ProviderSet
	Abuse      abuse.Window
	Content    ContentLookup
	Dispatcher Dispatcher
	Tokens     *TokenSource

	TTL            time.Duration
	LandingBaseURL string            // target behind every short link: {base}/l/{token}
	IsExempt       func(string) bool // users who skip the ad link
	Now            func() time.Time
}

// RequestAccess returns the user's gate for contentID, issuing one when no
// usable record exists. issued reports whether this call minted the link.
func (s *GateService) RequestAccess(ctx context.Context, userID, contentID string) (rec *domain.GateRecord, issued bool, err error) {
	tr := otel.Tracer("services/GateService")
	ctx, span := tr.Start(ctx, "RequestAccess",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	rec, outcome, err := s.requestAccess(ctx, userID, contentID)
	observability.GateRequests.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("gate.outcome", outcome))
	return rec, outcome == "issued", err
}

func (s *GateService) requestAccess(ctx context.Context, userID, contentID string) (*domain.GateRecord, string, error) {
	if !validID(userID, 64) || !validID(contentID, 128) {
		return nil, "error", ErrBadRequest
	}
	if _, err := s.Content.Get(ctx, contentID); err != nil {
		return nil, "error", err
	}

	var (
		out     *domain.GateRecord
		outcome = "error"
	)
	err := s.Ledger.WithKey(ctx, userID, contentID, func(ctx context.Context) error {
		now := s.now()

		existing, err := s.Ledger.Find(ctx, userID, contentID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return err
		default:
			switch existing.State {
			case domain.StatePending:
				out, outcome = existing, "existing"
				return nil
			case domain.StateCompleted:
				if !existing.ExpiredAt(now) {
					out, outcome = existing, "existing"
					return nil
				}
			case domain.StateIssued:
				// minting never finished; finish it on the same record
				if err := s.mint(ctx, existing); err != nil {
					return err
				}
				out, outcome = existing, "issued"
				return nil
			case domain.StateAbandoned:
				if !existing.ExpiredAt(now) {
					outcome = "rate_limited"
					return &RateLimitError{RetryAfter: existing.ExpiresAt.Sub(now), Reason: "gate abandoned"}
				}
			}
		}

		var rec *domain.GateRecord
		// the window reads issued rows, so admission and the insert of the
		// new row must not interleave with other content of the same user
		err = s.Ledger.WithUser(ctx, userID, func(ctx context.Context) error {
			if s.Abuse != nil {
				d, err := s.Abuse.Admit(ctx, userID, contentID, now)
				if err != nil {
					return fmt.Errorf("abuse window: %w", err)
				}
				if !d.Allowed {
					outcome = "rate_limited"
					sysutil.Logger(ctx).Warn().
						Str("user_id", userID).
						Dur("retry_after", d.RetryAfter).
						Msg("gate: distinct content limit reached")
					return &RateLimitError{RetryAfter: d.RetryAfter, Reason: "too many distinct items"}
				}
			}

			p := s.Providers.Select()
			if s.IsExempt != nil && s.IsExempt(userID) {
				p = s.Providers.Direct()
			}
			token, err := s.Tokens.Next()
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			rec = &domain.GateRecord{
				ID:         uuid.NewString(),
				UserID:     userID,
				ContentID:  contentID,
				ProviderID: p.ID(),
				Token:      token,
				State:      domain.StateIssued,
				IssuedAt:   now,
				ExpiresAt:  now.Add(s.TTL),
			}
			return s.Ledger.Upsert(ctx, rec)
		})
		if err != nil {
			return err
		}
		if err := s.mint(ctx, rec); err != nil {
			return err
		}
		out, outcome = rec, "issued"
		return nil
	})
	if err != nil {
		return nil, outcome, err
	}
	return out, outcome, nil
}

// mint obtains the short link for an issued record, stores it and moves the
// record to pending. On failure the record stays issued and the next
// RequestAccess resumes it.
func (s *GateService) mint(ctx context.Context, rec *domain.GateRecord) error {
	p, ok := s.Providers.Get(rec.ProviderID)
	if !ok {
		return fmt.Errorf("gate %s: provider %q is not configured", rec.ID, rec.ProviderID)
	}
	short, err := p.Mint(ctx, s.LandingBaseURL+"/l/"+rec.Token, rec.ContentID)
	if err != nil {
		sysutil.Logger(ctx).Warn().
			Err(err).
			Str("gate_id", rec.ID).
			Str("provider", rec.ProviderID).
			Msg("gate: mint failed")
		return err
	}
	rec.ShortURL = short
	if err := s.Ledger.Upsert(ctx, rec); err != nil {
		return err
	}
	return s.Ledger.Transition(ctx, rec, domain.StatePending)
}

// Verify checks the user's gate for contentID with its provider.
func (s *GateService) Verify(ctx context.Context, userID, contentID string) (VerifyResult, error) {
	tr := otel.Tracer("services/GateService")
	ctx, span := tr.Start(ctx, "Verify",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	res, err := s.verify(ctx, userID, contentID)
	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
	}
	observability.GateVerifications.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("gate.outcome", outcome))
	return res, err
}

// VerifyByToken runs Verify for the gate that owns token. It backs the
// landing page the short link redirects to.
func (s *GateService) VerifyByToken(ctx context.Context, token string) (VerifyResult, error) {
	if !validID(token, 64) {
		return VerifyResult{}, ErrNoSuchRequest
	}
	rec, err := s.Ledger.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VerifyResult{}, ErrNoSuchRequest
		}
		return VerifyResult{}, err
	}
	return s.Verify(ctx, rec.UserID, rec.ContentID)
}

func (s *GateService) verify(ctx context.Context, userID, contentID string) (VerifyResult, error) {
	if !validID(userID, 64) || !validID(contentID, 128) {
		return VerifyResult{}, ErrBadRequest
	}

	rec, err := s.load(ctx, userID, contentID)
	if err != nil {
		return VerifyResult{}, err
	}
	if rec.State != domain.StatePending {
		res := settled(rec)
		if s.unsignaled(rec) {
			sysutil.Logger(ctx).Warn().
				Str("gate_id", rec.ID).
				Msg("gate: completed without a delivery claim; signaling again")
			s.signal(ctx, &res)
		}
		return res, nil
	}

	p, ok := s.Providers.Get(rec.ProviderID)
	if !ok {
		return VerifyResult{}, fmt.Errorf("gate %s: provider %q is not configured", rec.ID, rec.ProviderID)
	}
	comp, checkErr := p.Check(ctx, rec.ShortURL, rec.Token)
	if checkErr != nil && ctx.Err() != nil {
		return VerifyResult{}, ctx.Err()
	}

	var (
		res    VerifyResult
		signal bool
	)
	err = s.Ledger.WithKey(ctx, userID, contentID, func(ctx context.Context) error {
		cur, err := s.Ledger.Find(ctx, userID, contentID)
		if err != nil {
			return err
		}
		if cur.ID != rec.ID || cur.State != domain.StatePending {
			// moved on while the provider was asked; the answer is stale
			res = settled(cur)
			return nil
		}

		switch {
		case checkErr == nil && comp == provider.CompletionCompleted:
			if err := s.Ledger.Transition(ctx, cur, domain.StateCompleted); err != nil {
				return err
			}
			signal = true

		case checkErr == nil && comp == provider.CompletionNotFound,
			errors.Is(checkErr, provider.ErrLinkGone):
			if err := s.Ledger.Transition(ctx, cur, domain.StateExpired); err != nil {
				return err
			}

		case checkErr == nil, provider.IsTransient(checkErr):
			if checkErr != nil {
				sysutil.Logger(ctx).Warn().
					Err(checkErr).
					Str("gate_id", cur.ID).
					Str("provider", cur.ProviderID).
					Msg("gate: provider unavailable; still locked")
			}
			if err := s.Ledger.RecordCheck(ctx, cur); err != nil {
				return err
			}

		default:
			return checkErr
		}
		res = settled(cur)
		return nil
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if signal {
		s.signal(ctx, &res)
	}
	return res, nil
}

// signal hands a completed record to the dispatcher and marks it signaled
// once the dispatcher holds a delivery marker for the pair.
func (s *GateService) signal(ctx context.Context, res *VerifyResult) {
	rec := res.Record
	d, err := s.Dispatcher.Deliver(ctx, rec.UserID, rec.ContentID)
	switch {
	case err == nil:
		res.Delivery = &d
	case errors.Is(err, ErrDeliveryFailed):
		// the failed marker is visible for redelivery
		sysutil.Logger(ctx).Error().
			Err(err).
			Str("user_id", rec.UserID).
			Str("content_id", rec.ContentID).
			Msg("gate: unlock delivery failed")
	default:
		// no marker was claimed; a later Verify signals again
		sysutil.Logger(ctx).Error().
			Err(err).
			Str("user_id", rec.UserID).
			Str("content_id", rec.ContentID).
			Msg("gate: unlock signal failed")
		return
	}
	if err := s.Ledger.MarkSignaled(context.WithoutCancel(ctx), rec); err != nil {
		sysutil.Logger(ctx).Error().Err(err).Str("gate_id", rec.ID).Msg("gate: mark signaled")
	}
}

// unsignaled reports a completed record whose unlock never reached the
// dispatcher, e.g. after a crash between completion and delivery. Recent
// completions are left to the Verify call that completed them.
func (s *GateService) unsignaled(rec *domain.GateRecord) bool {
	return rec.State == domain.StateCompleted &&
		!rec.UnlockSignaled &&
		rec.CompletedAt != nil &&
		s.now().Sub(*rec.CompletedAt) >= resignalAfter
}

// Abandon cancels the user's active gate for contentID.
func (s *GateService) Abandon(ctx context.Context, userID, contentID string) (*domain.GateRecord, error) {
	tr := otel.Tracer("services/GateService")
	ctx, span := tr.Start(ctx, "Abandon",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	if !validID(userID, 64) || !validID(contentID, 128) {
		return nil, ErrBadRequest
	}
	var out *domain.GateRecord
	err := s.Ledger.WithKey(ctx, userID, contentID, func(ctx context.Context) error {
		rec, err := s.Ledger.Find(ctx, userID, contentID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNoSuchRequest
			}
			return err
		}
		if err := s.Ledger.Transition(ctx, rec, domain.StateAbandoned); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// Status returns the user's latest gate for contentID after lazy expiry.
func (s *GateService) Status(ctx context.Context, userID, contentID string) (*domain.GateRecord, error) {
	if !validID(userID, 64) || !validID(contentID, 128) {
		return nil, ErrBadRequest
	}
	return s.load(ctx, userID, contentID)
}

// load reads the latest record under the key lock, since lazy expiry may
// write.
func (s *GateService) load(ctx context.Context, userID, contentID string) (*domain.GateRecord, error) {
	var rec *domain.GateRecord
	err := s.Ledger.WithKey(ctx, userID, contentID, func(ctx context.Context) error {
		r, err := s.Ledger.Find(ctx, userID, contentID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNoSuchRequest
			}
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// resignalAfter is how long a completed, unsignaled record waits before a
// Verify signals the dispatcher again.
const resignalAfter = time.Minute

func settled(rec *domain.GateRecord) VerifyResult {
	if rec.State == domain.StateCompleted {
		return VerifyResult{Outcome: Unlocked, Record: rec}
	}
	return VerifyResult{Outcome: StillLocked, Record: rec}
}

func (s *GateService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
