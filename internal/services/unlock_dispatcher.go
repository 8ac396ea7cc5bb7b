// Package services – UnlockDispatcher
//
// This file implements UnlockDispatcher, which releases a content payload to
// the chat transport at most once per (user, content). A delivery marker is
// claimed before the transport is invoked, so a duplicate unlock signal or a
// crash-and-retry can never send the same gated content twice.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/sysutil"
	"github.com/tbourn/go-linkgate/internal/transport"
	"github.com/tbourn/go-linkgate/internal/utils"
)

// DeliveryRepo defines the repository contract required by UnlockDispatcher.
type DeliveryRepo interface {
	ClaimDelivery(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error)
	GetDelivery(ctx context.Context, db *gorm.DB, userID, contentID string) (*domain.DeliveryMarker, error)
	MarkDelivered(ctx context.Context, db *gorm.DB, id string, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id, reason string, now time.Time) error
	ReclaimFailed(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error)
	CountDeliveries(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListDeliveriesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.DeliveryMarker, error)
}

// ContentLookup resolves catalog items; ContentService satisfies it.
type ContentLookup interface {
	Get(ctx context.Context, id string) (*domain.ContentItem, error)
}

// DeliveryOutcome is the result of a Deliver call.
type DeliveryOutcome string

const (
	Delivered        DeliveryOutcome = "delivered"
	AlreadyDelivered DeliveryOutcome = "already_delivered"
)

// DeliveryResult describes what Deliver did.
type DeliveryResult struct {
	Outcome DeliveryOutcome
	Marker  *domain.DeliveryMarker
}

// maxHistoryPage caps History page sizes.
const maxHistoryPage = 500

// UnlockDispatcher delivers unlocked content through a transport.Sender.
type UnlockDispatcher struct {
	DB      *gorm.DB
	Repo    DeliveryRepo
	Content ContentLookup
	Sender  transport.Sender
	Now     func() time.Time
}

// NewUnlockDispatcher wires a dispatcher with a UTC clock.
func NewUnlockDispatcher(db *gorm.DB, r DeliveryRepo, content ContentLookup, sender transport.Sender) *UnlockDispatcher {
	return &UnlockDispatcher{
		DB:      db,
		Repo:    r,
		Content: content,
		Sender:  sender,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Deliver sends the payload for contentID to userID unless a marker for the
// pair already exists. A transport failure leaves the marker failed; it is
// only retried through Redeliver.
func (d *UnlockDispatcher) Deliver(ctx context.Context, userID, contentID string) (DeliveryResult, error) {
	tr := otel.Tracer("services/UnlockDispatcher")
	ctx, span := tr.Start(ctx, "Deliver",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	item, err := d.payload(ctx, contentID)
	if err != nil {
		return DeliveryResult{}, err
	}

	m, err := d.Repo.ClaimDelivery(ctx, d.DB, userID, contentID, d.Now())
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			observability.UnlockDeliveries.WithLabelValues(string(AlreadyDelivered)).Inc()
			existing, gerr := d.Repo.GetDelivery(ctx, d.DB, userID, contentID)
			if gerr != nil {
				return DeliveryResult{Outcome: AlreadyDelivered}, nil
			}
			return DeliveryResult{Outcome: AlreadyDelivered, Marker: existing}, nil
		}
		return DeliveryResult{}, err
	}
	return d.send(ctx, m, item)
}

// Redeliver retries a failed delivery. Markers that are claimed or delivered
// yield ErrNotRedeliverable; a missing marker yields ErrNoSuchRequest.
func (d *UnlockDispatcher) Redeliver(ctx context.Context, userID, contentID string) (DeliveryResult, error) {
	tr := otel.Tracer("services/UnlockDispatcher")
	ctx, span := tr.Start(ctx, "Redeliver",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	item, err := d.payload(ctx, contentID)
	if err != nil {
		return DeliveryResult{}, err
	}
	m, err := d.Repo.ReclaimFailed(ctx, d.DB, userID, contentID, d.Now())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return DeliveryResult{}, err
		}
		if _, gerr := d.Repo.GetDelivery(ctx, d.DB, userID, contentID); gerr != nil {
			if errors.Is(gerr, repo.ErrNotFound) {
				return DeliveryResult{}, ErrNoSuchRequest
			}
			return DeliveryResult{}, gerr
		}
		return DeliveryResult{}, ErrNotRedeliverable
	}
	return d.send(ctx, m, item)
}

// History returns a page of the user's delivery markers and the total.
func (d *UnlockDispatcher) History(ctx context.Context, userID string, page, pageSize int) ([]domain.DeliveryMarker, int64, error) {
	p := utils.ClampPage(page, pageSize, maxHistoryPage)
	total, err := d.Repo.CountDeliveries(ctx, d.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DeliveryMarker{}, 0, nil
	}
	items, err := d.Repo.ListDeliveriesPage(ctx, d.DB, userID, p.Offset(), p.Size)
	return items, total, err
}

func (d *UnlockDispatcher) payload(ctx context.Context, contentID string) (*domain.ContentItem, error) {
	item, err := d.Content.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			observability.UnlockDeliveries.WithLabelValues("payload_missing").Inc()
			return nil, ErrPayloadMissing
		}
		return nil, err
	}
	if !item.HasPayload() {
		observability.UnlockDeliveries.WithLabelValues("payload_missing").Inc()
		return nil, ErrPayloadMissing
	}
	return item, nil
}

func (d *UnlockDispatcher) send(ctx context.Context, m *domain.DeliveryMarker, item *domain.ContentItem) (DeliveryResult, error) {
	l := sysutil.Logger(ctx)
	err := d.Sender.SendMessage(ctx, m.UserID, transport.Payload{
		ContentID: item.ID,
		Kind:      string(item.Kind),
		Title:     item.Title,
		Text:      item.Text,
		MediaURL:  item.MediaURL,
	})
	now := d.Now()
	if err != nil {
		observability.UnlockDeliveries.WithLabelValues("failed").Inc()
		l.Error().Err(err).Str("user_id", m.UserID).Str("content_id", m.ContentID).Msg("unlock delivery failed")
		// a detached context so cancellation does not leave the marker claimed
		if merr := d.Repo.MarkFailed(context.WithoutCancel(ctx), d.DB, m.ID, err.Error(), now); merr != nil {
			l.Error().Err(merr).Str("marker_id", m.ID).Msg("mark delivery failed")
		}
		return DeliveryResult{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if err := d.Repo.MarkDelivered(context.WithoutCancel(ctx), d.DB, m.ID, now); err != nil {
		// sent but not recorded; the claimed marker still blocks a resend
		l.Error().Err(err).Str("marker_id", m.ID).Msg("mark delivery delivered")
	}
	m.Status = domain.DeliveryDelivered
	m.DeliveredAt = &now
	observability.UnlockDeliveries.WithLabelValues(string(Delivered)).Inc()
	return DeliveryResult{Outcome: Delivered, Marker: m}, nil
}
