// Package domain defines the persistence models for gated content, gate
// records, minted provider links and deliveries. These types are mapped with
// GORM and form the core data layer of the link-gate service.
package domain

import (
	"time"
)

// ContentKind names the payload carried by a ContentItem.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindAudio ContentKind = "audio"
)

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio:
		return true
	}
	return false
}

// ContentItem is a gated payload. Items are immutable once created.
//
// Fields:
//   - ID: opaque identifier chosen by the operator.
//   - Kind: text, image or audio (enforced by DB constraint).
//   - Title: display title shown with the gate link.
//   - Text: inline payload for text items.
//   - MediaURL: blob location for image and audio items.
type ContentItem struct {
	ID        string      `json:"id"         gorm:"type:varchar(128);primaryKey"`
	Kind      ContentKind `json:"kind"       gorm:"type:varchar(16);not null;check:kind IN ('text','image','audio')"`
	Title     string      `json:"title"      gorm:"type:varchar(255);not null"`
	Text      string      `json:"text,omitempty"      gorm:"type:text"`
	MediaURL  string      `json:"media_url,omitempty" gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName returns the database table name for ContentItem.
func (ContentItem) TableName() string { return "content_items" }

// HasPayload reports whether the item carries what its kind needs.
func (c ContentItem) HasPayload() bool {
	if c.Kind == KindText {
		return c.Text != ""
	}
	return c.MediaURL != ""
}

// GateRecord tracks one gate issued to a user for one content item.
// At most one record per (user_id, content_id) may be issued or pending at a
// time; the partial unique index ux_gate_records_active is created by the
// repository migration since GORM tags cannot express a WHERE clause.
//
// Fields:
//   - Token: secret per-record value the provider echoes back on completion.
//   - ShortURL: empty until the provider has minted the link.
//   - ExpiresAt: IssuedAt + TTL; compared lazily on read.
//   - LastCheckedAt / CheckAttempts: completion check bookkeeping.
//   - UnlockSignaled: set once the dispatcher has claimed the delivery of a
//     completed record. A completed record without it is signaled again.
type GateRecord struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string     `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_gate_user_issued,priority:1;index:idx_gate_pair,priority:1"`
	ContentID      string     `json:"content_id"      gorm:"type:varchar(128);not null;index:idx_gate_pair,priority:2"`
	ProviderID     string     `json:"provider_id"     gorm:"type:varchar(64);not null"`
	Token          string     `json:"-"               gorm:"type:varchar(64);not null;uniqueIndex"`
	ShortURL       string     `json:"short_url"       gorm:"type:text"`
	State          GateState  `json:"state"           gorm:"type:varchar(16);not null;check:state IN ('issued','pending','completed','expired','abandoned')"`
	IssuedAt       time.Time  `json:"issued_at"       gorm:"not null;index:idx_gate_user_issued,priority:2"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"      gorm:"not null"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	CheckAttempts  int        `json:"check_attempts"  gorm:"not null;default:0"`
	UnlockSignaled bool       `json:"-"               gorm:"not null;default:false"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for GateRecord.
func (GateRecord) TableName() string { return "gate_records" }

// ExpiredAt reports whether the record's TTL has elapsed at now.
func (r GateRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// LastActivity is the most recent issuance or check time.
func (r GateRecord) LastActivity() time.Time {
	if r.LastCheckedAt != nil && r.LastCheckedAt.After(r.IssuedAt) {
		return *r.LastCheckedAt
	}
	return r.IssuedAt
}

// ProviderLink caches the first link a provider minted for a target, so
// re-minting the same (provider, target, content) returns the same URL.
type ProviderLink struct {
	ID         uint      `gorm:"primaryKey"`
	ProviderID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_link,priority:1"`
	TargetURL  string    `gorm:"type:varchar(512);not null;uniqueIndex:ux_provider_link,priority:2"`
	ContentID  string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_link,priority:3"`
	ShortURL   string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (ProviderLink) TableName() string { return "provider_links" }
