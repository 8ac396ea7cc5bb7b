package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/keylock"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// Ledger is the durable record of every gate issued. It enforces the gate
// state machine, applies TTL expiry and inactivity abandonment lazily on
// read, and serializes work per (user, content) through a Locker.
type Ledger struct {
	DB           *gorm.DB
	Locks        keylock.Locker
	AbandonAfter time.Duration // 0 disables inactivity abandonment
	Now          func() time.Time
}

// NewLedger returns a Ledger with an in-process lock and a UTC wall clock.
func NewLedger(db *gorm.DB, locks keylock.Locker, abandonAfter time.Duration) *Ledger {
	if locks == nil {
		locks = keylock.New()
	}
	return &Ledger{
		DB:           db,
		Locks:        locks,
		AbandonAfter: abandonAfter,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// Key is the lock and uniqueness key of a gate.
func Key(userID, contentID string) string {
	return userID + "\x00" + contentID
}

// WithKey runs fn while holding the lock for (userID, contentID).
func (l *Ledger) WithKey(ctx context.Context, userID, contentID string, fn func(ctx context.Context) error) error {
	unlock, err := l.Locks.Lock(ctx, Key(userID, contentID))
	if err != nil {
		return fmt.Errorf("lock gate: %w", err)
	}
	defer unlock()
	return fn(ctx)
}

// WithUser runs fn while holding the lock for every gate of userID. Callers
// that also hold a pair lock take it first.
func (l *Ledger) WithUser(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	unlock, err := l.Locks.Lock(ctx, "user\x00"+userID)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	defer unlock()
	return fn(ctx)
}

// Upsert inserts rec, or saves it when a row with its ID exists. A second
// active record for the same pair yields ErrDuplicate.
func (l *Ledger) Upsert(ctx context.Context, rec *domain.GateRecord) error {
	rec.UpdatedAt = l.Now()
	if err := l.DB.WithContext(ctx).Save(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Find returns the most recent record for the pair after lazy expiry and
// abandonment, or ErrNotFound.
func (l *Ledger) Find(ctx context.Context, userID, contentID string) (*domain.GateRecord, error) {
	var rec domain.GateRecord
	err := l.DB.WithContext(ctx).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		// rowid follows insertion order; ids are random
		Order("issued_at desc, rowid desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return l.settle(ctx, &rec)
}

// FindByToken resolves a record from its verification token.
func (l *Ledger) FindByToken(ctx context.Context, token string) (*domain.GateRecord, error) {
	var rec domain.GateRecord
	if err := l.DB.WithContext(ctx).Where("token = ?", token).First(&rec).Error; err != nil {
		return nil, err
	}
	return l.settle(ctx, &rec)
}

// settle applies time-driven transitions to an active record.
func (l *Ledger) settle(ctx context.Context, rec *domain.GateRecord) (*domain.GateRecord, error) {
	if !rec.State.IsActive() {
		return rec, nil
	}
	now := l.Now()

	var to domain.GateState
	switch {
	case rec.ExpiredAt(now):
		to = domain.StateExpired
	case l.AbandonAfter > 0 && now.Sub(rec.LastActivity()) >= l.AbandonAfter:
		to = domain.StateAbandoned
	default:
		return rec, nil
	}

	if err := l.Transition(ctx, rec, to); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		// another writer moved it first; report what is stored
		var fresh domain.GateRecord
		if err := l.DB.WithContext(ctx).Where("id = ?", rec.ID).First(&fresh).Error; err != nil {
			return nil, err
		}
		return &fresh, nil
	}
	return rec, nil
}

// Transition moves rec to state to. Illegal moves, and moves that lose a race
// with another writer, return ErrInvalidTransition and are never applied.
// On success rec is updated in place.
func (l *Ledger) Transition(ctx context.Context, rec *domain.GateRecord, to domain.GateState) error {
	from := rec.State
	if !from.CanTransition(to) {
		sysutil.Logger(ctx).Warn().
			Str("gate_id", rec.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("ledger: rejected transition")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := l.Now()
	fields := map[string]any{
		"state":      to,
		"updated_at": now,
	}
	if to == domain.StateCompleted {
		fields["completed_at"] = now
	}

	res := l.DB.WithContext(ctx).
		Model(&domain.GateRecord{}).
		Where("id = ? AND state = ?", rec.ID, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is no longer %s", ErrInvalidTransition, rec.ID, from)
	}

	rec.State = to
	rec.UpdatedAt = now
	if to == domain.StateCompleted {
		rec.CompletedAt = &now
	}
	return nil
}

// MarkSignaled records that the unlock of a completed record reached the
// dispatcher.
func (l *Ledger) MarkSignaled(ctx context.Context, rec *domain.GateRecord) error {
	res := l.DB.WithContext(ctx).
		Model(&domain.GateRecord{}).
		Where("id = ? AND state = ?", rec.ID, domain.StateCompleted).
		Updates(map[string]any{"unlock_signaled": true, "updated_at": l.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		rec.UnlockSignaled = true
	}
	return nil
}

// RecordCheck stamps a completion check on an active record.
func (l *Ledger) RecordCheck(ctx context.Context, rec *domain.GateRecord) error {
	now := l.Now()
	res := l.DB.WithContext(ctx).
		Model(&domain.GateRecord{}).
		Where("id = ? AND state IN ?", rec.ID, []domain.GateState{domain.StateIssued, domain.StatePending}).
		Updates(map[string]any{
			"last_checked_at": now,
			"check_attempts":  gorm.Expr("check_attempts + 1"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		rec.LastCheckedAt = &now
		rec.CheckAttempts++
		rec.UpdatedAt = now
	}
	return nil
}

// CountDistinctContent counts the distinct content IDs userID was issued a
// gate for at or after since, ignoring exclude.
func (l *Ledger) CountDistinctContent(ctx context.Context, userID string, since time.Time, exclude string) (int64, error) {
	var n int64
	err := l.DB.WithContext(ctx).
		Model(&domain.GateRecord{}).
		Where("user_id = ? AND issued_at >= ? AND content_id <> ?", userID, since, exclude).
		Distinct("content_id").
		Count(&n).Error
	return n, err
}

// RecentContent maps each content ID userID was issued a gate for at or
// after since to its latest issuance time.
func (l *Ledger) RecentContent(ctx context.Context, userID string, since time.Time) (map[string]time.Time, error) {
	var rows []struct {
		ContentID string
		IssuedAt  time.Time
	}
	err := l.DB.WithContext(ctx).
		Model(&domain.GateRecord{}).
		Select("content_id", "issued_at").
		Where("user_id = ? AND issued_at >= ?", userID, since).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		if r.IssuedAt.After(out[r.ContentID]) {
			out[r.ContentID] = r.IssuedAt
		}
	}
	return out, nil
}
