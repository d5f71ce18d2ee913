package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/enums"
)

// ContentItem captures metadata for a creator's uploaded media object. The
// delivery URL is an opaque absolute HTTP(S) URL into the CDN origin; the
// platform never parses or rewrites it.
type ContentItem struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID    uuid.UUID         `gorm:"column:creator_id;type:uuid;not null;index"`
	Title        string            `gorm:"column:title;not null"`
	FileName     string            `gorm:"column:file_name;not null"`
	DeliveryURL  string            `gorm:"column:delivery_url;not null"`
	ThumbnailURL *string           `gorm:"column:thumbnail_url"`
	MimeType     string            `gorm:"column:mime_type;not null"`
	SizeBytes    int64             `gorm:"column:size_bytes;not null"`
	DurationSecs *float64          `gorm:"column:duration_secs"`
	ContentType  enums.ContentType `gorm:"column:content_type;not null"`
	GCSKey       *string           `gorm:"column:gcs_key;unique"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
