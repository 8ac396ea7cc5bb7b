package domain

import "time"

// DeliveryStatus is the outcome recorded on a DeliveryMarker.
type DeliveryStatus string

const (
	DeliveryClaimed   DeliveryStatus = "claimed"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryMarker records that content was (or is being) delivered to a user,
// keyed by (user_id, content_id). The row is claimed before the transport is
// invoked so a second unlock signal for the same pair never sends twice.
// The marker set doubles as the per-user delivery history.
type DeliveryMarker struct {
	ID          string         `json:"id"           gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      string         `json:"user_id"      gorm:"type:TEXT NOT NULL;uniqueIndex:ux_delivery_user_content,priority:1"`
	ContentID   string         `json:"content_id"   gorm:"type:TEXT NOT NULL;uniqueIndex:ux_delivery_user_content,priority:2"`
	Status      DeliveryStatus `json:"status"       gorm:"type:TEXT NOT NULL"`
	Attempts    int            `json:"attempts"     gorm:"type:INTEGER NOT NULL;default:1"`
	LastError   string         `json:"last_error,omitempty" gorm:"type:TEXT"`
	ClaimedAt   time.Time      `json:"claimed_at"   gorm:"type:DATETIME NOT NULL;index"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty" gorm:"type:DATETIME"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (DeliveryMarker) TableName() string { return "delivery_markers" }
