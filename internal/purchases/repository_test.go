package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
)

func setupPurchasesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)

	legacyPurchases := `
CREATE TABLE IF NOT EXISTS legacy_purchases (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  bundle_id TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	unifiedPurchases := `
CREATE TABLE IF NOT EXISTS unified_purchases (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  bundle_id TEXT NOT NULL,
  bundle_title TEXT NOT NULL,
  bundle_description TEXT,
  source TEXT NOT NULL,
  session_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (buyer_id, bundle_id)
);`
	unifiedItems := `
CREATE TABLE IF NOT EXISTS unified_purchase_items (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL,
  content_item_id TEXT NOT NULL,
  title TEXT NOT NULL,
  file_name TEXT NOT NULL,
  delivery_url TEXT NOT NULL,
  thumbnail_url TEXT,
  mime_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  duration_secs REAL,
  content_type TEXT NOT NULL,
  created_at DATETIME,
  FOREIGN KEY (purchase_id) REFERENCES unified_purchases (id) ON DELETE CASCADE
);`
	require.NoError(t, db.Exec(legacyPurchases).Error)
	require.NoError(t, db.Exec(unifiedPurchases).Error)
	require.NoError(t, db.Exec(unifiedItems).Error)
	return db
}

func unifiedFixture(buyerID, bundleID uuid.UUID) *models.UnifiedPurchase {
	return &models.UnifiedPurchase{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		BundleID:    bundleID,
		BundleTitle: "Bundle",
		Source:      enums.PurchaseSourceMigration,
		Items: []models.UnifiedPurchaseItem{
			{
				ID:            uuid.New(),
				ContentItemID: uuid.New(),
				Title:         "Item",
				FileName:      "a.mp4",
				DeliveryURL:   "https://cdn.example.com/a.mp4",
				MimeType:      "video/mp4",
				SizeBytes:     100,
				ContentType:   enums.ContentTypeVideo,
			},
		},
	}
}

func TestCreateUnifiedIgnoresDuplicate(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	bundleID := uuid.New()

	created, err := repo.CreateUnified(ctx, unifiedFixture(buyerID, bundleID))
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateUnified(ctx, unifiedFixture(buyerID, bundleID))
	require.NoError(t, err)
	require.False(t, created, "duplicate (buyer, bundle) insert must be ignored")

	var count int64
	require.NoError(t, db.Model(&models.UnifiedPurchase{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The losing insert must skip its item snapshots too: with the foreign key
	// enforced, writing them against the skipped parent id would fail, and
	// without it they would linger as orphans.
	var itemCount int64
	require.NoError(t, db.Model(&models.UnifiedPurchaseItem{}).Count(&itemCount).Error)
	require.EqualValues(t, 1, itemCount)
}

func TestFindUnifiedPreloadsItems(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	bundleID := uuid.New()

	_, err := repo.CreateUnified(ctx, unifiedFixture(buyerID, bundleID))
	require.NoError(t, err)

	found, err := repo.FindUnified(ctx, buyerID, bundleID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	require.Equal(t, "https://cdn.example.com/a.mp4", found.Items[0].DeliveryURL)

	_, err = repo.FindUnified(ctx, buyerID, uuid.New())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestCreateLegacyIgnoresDuplicateSession(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purchase := &models.LegacyPurchase{
		ID:            uuid.New(),
		SessionID:     "cs_test_dup",
		BuyerID:       uuid.New(),
		BundleID:      uuid.New(),
		PaymentStatus: enums.PaymentStatusPaid,
	}
	created, err := repo.CreateLegacy(ctx, purchase)
	require.NoError(t, err)
	require.True(t, created)

	retry := *purchase
	retry.ID = uuid.New()
	created, err = repo.CreateLegacy(ctx, &retry)
	require.NoError(t, err)
	require.False(t, created, "webhook retry with the same session must be a no-op")

	found, err := repo.FindLegacyBySession(ctx, "cs_test_dup")
	require.NoError(t, err)
	require.Equal(t, purchase.ID, found.ID)
}

func TestListByBuyerScoping(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	other := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := repo.CreateUnified(ctx, unifiedFixture(buyerID, uuid.New()))
		require.NoError(t, err)
	}
	_, err := repo.CreateUnified(ctx, unifiedFixture(other, uuid.New()))
	require.NoError(t, err)

	_, err = repo.CreateLegacy(ctx, &models.LegacyPurchase{
		ID:            uuid.New(),
		SessionID:     "cs_test_1",
		BuyerID:       buyerID,
		BundleID:      uuid.New(),
		PaymentStatus: enums.PaymentStatusPaid,
	})
	require.NoError(t, err)

	unifiedRows, err := repo.ListUnifiedByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, unifiedRows, 2)

	legacyRows, err := repo.ListLegacyByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, legacyRows, 1)

	legacyRows, err = repo.ListLegacyByBuyer(ctx, other)
	require.NoError(t, err)
	require.Empty(t, legacyRows)
}
