package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bundleup/bundleup-backend/pkg/enums"
)

// Bundle is a creator's sellable grouping of content items. Items are
// referenced by id; the authoritative item metadata lives in content_items.
type Bundle struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID      uuid.UUID       `gorm:"column:creator_id;type:uuid;not null;index"`
	Title          string          `gorm:"column:title;not null"`
	Description    *string         `gorm:"column:description"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Currency       enums.Currency  `gorm:"column:currency;not null;default:'usd'"`
	IsActive       bool            `gorm:"column:is_active;not null;default:true"`
	ContentItemIDs pq.StringArray  `gorm:"column:content_item_ids;type:uuid[];not null;default:ARRAY[]::uuid[]"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
