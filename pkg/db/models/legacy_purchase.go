package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/enums"
)

// LegacyPurchase is the historical per-bundle purchase shape. It carries no
// item list; content is resolved at read time from the bundle's current ids.
type LegacyPurchase struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID     string              `gorm:"column:session_id;not null;unique"`
	BuyerID       uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index:idx_legacy_purchases_buyer_bundle"`
	BundleID      uuid.UUID           `gorm:"column:bundle_id;type:uuid;not null;index:idx_legacy_purchases_buyer_bundle"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
