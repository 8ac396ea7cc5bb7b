package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-linkgate/internal/domain"
)

// GetProviderLink returns the cached short link for (provider, target, content),
// or ErrNotFound.
func GetProviderLink(ctx context.Context, db *gorm.DB, providerID, targetURL, contentID string) (*domain.ProviderLink, error) {
	var l domain.ProviderLink
	err := db.WithContext(ctx).
		Where("provider_id = ? AND target_url = ? AND content_id = ?", providerID, targetURL, contentID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// PutProviderLink stores shortURL unless a link already exists for the same
// key, and returns whichever link is stored. The first writer wins.
func PutProviderLink(ctx context.Context, db *gorm.DB, providerID, targetURL, contentID, shortURL string) (*domain.ProviderLink, error) {
	l := &domain.ProviderLink{
		ProviderID: providerID,
		TargetURL:  targetURL,
		ContentID:  contentID,
		ShortURL:   shortURL,
		CreatedAt:  time.Now().UTC(),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return l, nil
	}
	return GetProviderLink(ctx, db, providerID, targetURL, contentID)
}
