package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/enums"
)

// UnifiedPurchase is the self-contained purchase shape: rendering requires no
// further joins. At most one row may exist per (buyer_id, bundle_id); the
// unique index backs the migration path's conflict-ignoring insert.
type UnifiedPurchase struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:uq_unified_purchases_buyer_bundle"`
	BundleID          uuid.UUID             `gorm:"column:bundle_id;type:uuid;not null;uniqueIndex:uq_unified_purchases_buyer_bundle"`
	BundleTitle       string                `gorm:"column:bundle_title;not null"`
	BundleDescription *string               `gorm:"column:bundle_description"`
	Source            enums.PurchaseSource  `gorm:"column:source;not null"`
	SessionID         *string               `gorm:"column:session_id"`
	Items             []UnifiedPurchaseItem `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// UnifiedPurchaseItem is a denormalized snapshot of a content item at the
// moment the purchase was unified. Only items whose resolved delivery URL
// begins with an HTTP(S) scheme are ever written.
type UnifiedPurchaseItem struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID    uuid.UUID         `gorm:"column:purchase_id;type:uuid;not null;index"`
	ContentItemID uuid.UUID         `gorm:"column:content_item_id;type:uuid;not null"`
	Title         string            `gorm:"column:title;not null"`
	FileName      string            `gorm:"column:file_name;not null"`
	DeliveryURL   string            `gorm:"column:delivery_url;not null"`
	ThumbnailURL  *string           `gorm:"column:thumbnail_url"`
	MimeType      string            `gorm:"column:mime_type;not null"`
	SizeBytes     int64             `gorm:"column:size_bytes;not null"`
	DurationSecs  *float64          `gorm:"column:duration_secs"`
	ContentType   enums.ContentType `gorm:"column:content_type;not null"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
