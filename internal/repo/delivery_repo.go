package repo

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
)

// ClaimDelivery inserts a claimed marker for (userID, contentID). A marker
// that already exists, in any status, yields ErrDuplicate.
func ClaimDelivery(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error) {
	m := &domain.DeliveryMarker{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContentID: contentID,
		Status:    domain.DeliveryClaimed,
		Attempts:  1,
		ClaimedAt: now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// GetDelivery fetches the marker for (userID, contentID), or ErrNotFound.
func GetDelivery(ctx context.Context, db *gorm.DB, userID, contentID string) (*domain.DeliveryMarker, error) {
	var m domain.DeliveryMarker
	err := db.WithContext(ctx).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkDelivered moves a claimed marker to delivered.
func MarkDelivered(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return finishDelivery(ctx, db, id, map[string]any{
		"status":       domain.DeliveryDelivered,
		"delivered_at": now,
		"last_error":   "",
		"updated_at":   now,
	})
}

// maxReasonBytes bounds a stored delivery error.
const maxReasonBytes = 500

// MarkFailed moves a claimed marker to failed with a short reason.
func MarkFailed(ctx context.Context, db *gorm.DB, id, reason string, now time.Time) error {
	if len(reason) > maxReasonBytes {
		cut := maxReasonBytes
		for cut > 0 && !utf8.RuneStart(reason[cut]) {
			cut--
		}
		reason = reason[:cut]
	}
	return finishDelivery(ctx, db, id, map[string]any{
		"status":     domain.DeliveryFailed,
		"last_error": reason,
		"updated_at": now,
	})
}

func finishDelivery(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.DeliveryMarker{}).
		Where("id = ? AND status = ?", id, domain.DeliveryClaimed).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReclaimFailed flips a failed marker back to claimed for another attempt.
// Markers in any other status yield ErrNotFound.
func ReclaimFailed(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error) {
	res := db.WithContext(ctx).
		Model(&domain.DeliveryMarker{}).
		Where("user_id = ? AND content_id = ? AND status = ?", userID, contentID, domain.DeliveryFailed).
		Updates(map[string]any{
			"status":     domain.DeliveryClaimed,
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetDelivery(ctx, db, userID, contentID)
}

// CountDeliveries returns how many markers a user has.
func CountDeliveries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryMarker{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListDeliveriesPage returns a user's markers, most recent claim first.
func ListDeliveriesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.DeliveryMarker, error) {
	var out []domain.DeliveryMarker
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("claimed_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
