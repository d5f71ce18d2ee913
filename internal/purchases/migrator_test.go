package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
)

func newTestMigrator(t *testing.T, repo purchasesRepository, bundleRepo *stubBundleRepo, resolver *stubResolver) Migrator {
	t.Helper()
	m, err := NewMigrator(repo, bundleRepo, resolver, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	return m
}

func TestMigrateOneIdempotent(t *testing.T) {
	userID := uuid.New()
	bundleID := uuid.New()
	c1 := uuid.New()
	c2 := uuid.New()

	repo := newStubPurchaseRepo()
	repo.legacy[pairKey{userID, bundleID}] = &models.LegacyPurchase{
		SessionID: "cs_test_abc",
		BuyerID:   userID,
		BundleID:  bundleID,
	}
	bundleRepo := &stubBundleRepo{bundles: map[uuid.UUID]*models.Bundle{
		bundleID: testBundle(bundleID, c1, c2),
	}}
	resolver := &stubResolver{items: map[uuid.UUID]models.ContentItem{
		c1: testContentItem(c1, "https://cdn.example.com/c1"),
		c2: testContentItem(c2, "https://cdn.example.com/c2"),
	}}
	m := newTestMigrator(t, repo, bundleRepo, resolver)

	first, err := m.MigrateOne(context.Background(), userID, bundleID)
	if err != nil {
		t.Fatalf("first MigrateOne: %v", err)
	}
	if first.ItemsMigrated != 2 || first.AlreadyMigrated {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := m.MigrateOne(context.Background(), userID, bundleID)
	if err != nil {
		t.Fatalf("second MigrateOne: %v", err)
	}
	if !second.AlreadyMigrated || second.ItemsMigrated != 0 {
		t.Fatalf("second call should be a no-op, got %+v", second)
	}
	if len(repo.unified) != 1 {
		t.Fatalf("expected exactly one unified record, got %d", len(repo.unified))
	}
	if repo.createCalls != 1 {
		t.Fatalf("expected one insert attempt, got %d", repo.createCalls)
	}
}

func TestMigrateOneNoLegacyPurchase(t *testing.T) {
	repo := newStubPurchaseRepo()
	m := newTestMigrator(t, repo, &stubBundleRepo{}, &stubResolver{})

	_, err := m.MigrateOne(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected purchase-not-found failure, not an empty success")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMigrateOneBundleDeleted(t *testing.T) {
	userID := uuid.New()
	bundleID := uuid.New()

	repo := newStubPurchaseRepo()
	repo.legacy[pairKey{userID, bundleID}] = &models.LegacyPurchase{BuyerID: userID, BundleID: bundleID}
	m := newTestMigrator(t, repo, &stubBundleRepo{}, &stubResolver{})

	_, err := m.MigrateOne(context.Background(), userID, bundleID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found for deleted bundle, got %v", err)
	}
	if len(repo.unified) != 0 {
		t.Fatal("failed migration must not write a unified record")
	}
}

func TestMigrateOneLosesInsertRace(t *testing.T) {
	userID := uuid.New()
	bundleID := uuid.New()
	c1 := uuid.New()

	repo := newStubPurchaseRepo()
	repo.legacy[pairKey{userID, bundleID}] = &models.LegacyPurchase{BuyerID: userID, BundleID: bundleID}
	bundleRepo := &stubBundleRepo{bundles: map[uuid.UUID]*models.Bundle{
		bundleID: testBundle(bundleID, c1),
	}}
	resolver := &stubResolver{items: map[uuid.UUID]models.ContentItem{
		c1: testContentItem(c1, "https://cdn.example.com/c1"),
	}}

	// Simulate a concurrent winner: the existence check misses but the
	// conflict-ignoring insert reports no row written.
	m := newTestMigrator(t, &racingRepo{stubPurchaseRepo: repo}, bundleRepo, resolver)

	result, err := m.MigrateOne(context.Background(), userID, bundleID)
	if err != nil {
		t.Fatalf("MigrateOne: %v", err)
	}
	if !result.AlreadyMigrated {
		t.Fatal("losing the insert race should report already migrated")
	}
}

// racingRepo hides the unified row from FindUnified but makes CreateUnified
// report a conflict, mimicking a concurrent migration winning between the
// check and the write.
type racingRepo struct {
	*stubPurchaseRepo
}

func (r *racingRepo) FindUnified(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.UnifiedPurchase, error) {
	return r.stubPurchaseRepo.FindUnified(ctx, uuid.New(), uuid.New())
}

func (r *racingRepo) CreateUnified(ctx context.Context, purchase *models.UnifiedPurchase) (bool, error) {
	return false, nil
}

func TestMigrateAllContinuesOnError(t *testing.T) {
	userID := uuid.New()
	goodBundle1 := uuid.New()
	goodBundle2 := uuid.New()
	deletedBundle := uuid.New()
	c1 := uuid.New()
	c2 := uuid.New()

	repo := newStubPurchaseRepo()
	repo.legacyRows = []models.LegacyPurchase{
		{BuyerID: userID, BundleID: goodBundle1},
		{BuyerID: userID, BundleID: deletedBundle},
		{BuyerID: userID, BundleID: goodBundle2},
	}
	repo.legacy[pairKey{userID, goodBundle1}] = &repo.legacyRows[0]
	repo.legacy[pairKey{userID, deletedBundle}] = &repo.legacyRows[1]
	repo.legacy[pairKey{userID, goodBundle2}] = &repo.legacyRows[2]

	bundleRepo := &stubBundleRepo{bundles: map[uuid.UUID]*models.Bundle{
		goodBundle1: testBundle(goodBundle1, c1),
		goodBundle2: testBundle(goodBundle2, c2),
	}}
	resolver := &stubResolver{items: map[uuid.UUID]models.ContentItem{
		c1: testContentItem(c1, "https://cdn.example.com/c1"),
		c2: testContentItem(c2, "https://cdn.example.com/c2"),
	}}
	m := newTestMigrator(t, repo, bundleRepo, resolver)

	result, err := m.MigrateAll(context.Background(), userID)
	if err != nil {
		t.Fatalf("MigrateAll must not abort on a single failure: %v", err)
	}
	if result.Migrated != 2 {
		t.Fatalf("expected 2 successful migrations, got %d", result.Migrated)
	}
	if result.FailedCount() != 1 {
		t.Fatalf("expected 1 failure, got %d", result.FailedCount())
	}
	if result.Failed[0].ID != deletedBundle {
		t.Fatalf("expected failure for deleted bundle, got %s", result.Failed[0].ID)
	}
}

func TestMigrateAllListFailure(t *testing.T) {
	repo := newStubPurchaseRepo()
	repo.listErr = errors.New("connection refused")
	m := newTestMigrator(t, repo, &stubBundleRepo{}, &stubResolver{})

	_, err := m.MigrateAll(context.Background(), uuid.New())
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("list failure should be retryable, got %v", err)
	}
}
