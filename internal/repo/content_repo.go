// Package repo implements the data persistence layer for domain entities,
// backed by GORM.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Gate records are the exception: they
// are reached through Ledger, which owns state machine enforcement.
//
// Error semantics:
//   - Missing rows return gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - Unique index violations return ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/domain"
)

// CreateContent inserts an immutable content item. An existing ID yields
// ErrDuplicate.
func CreateContent(ctx context.Context, db *gorm.DB, item *domain.ContentItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetContent fetches a content item by ID, or ErrNotFound.
func GetContent(ctx context.Context, db *gorm.DB, id string) (*domain.ContentItem, error) {
	var c domain.ContentItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountContent returns the catalog size.
func CountContent(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.ContentItem{}).Count(&total).Error
	return total, err
}

// ListContentPage returns catalog items, newest first.
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListContentPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ContentItem, error) {
	var out []domain.ContentItem
	err := db.WithContext(ctx).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
