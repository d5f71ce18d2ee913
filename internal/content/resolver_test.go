package content

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

type stubItemRepo struct {
	items map[uuid.UUID]*models.ContentItem
	errs  map[uuid.UUID]error
	calls int
}

func (s *stubItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	s.calls++
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func testItem(id uuid.UUID, url string) *models.ContentItem {
	return &models.ContentItem{
		ID:          id,
		CreatorID:   uuid.New(),
		Title:       "Item " + id.String()[:8],
		FileName:    "file.mp4",
		DeliveryURL: url,
		MimeType:    "video/mp4",
		SizeBytes:   1024,
		ContentType: enums.ContentTypeVideo,
	}
}

func TestResolveItemsPartialFailure(t *testing.T) {
	good1 := uuid.New()
	good2 := uuid.New()
	missing := uuid.New()
	broken := uuid.New()

	repo := &stubItemRepo{
		items: map[uuid.UUID]*models.ContentItem{
			good1: testItem(good1, "https://cdn.example.com/a.mp4"),
			good2: testItem(good2, "http://cdn.example.com/b.mp4"),
		},
		errs: map[uuid.UUID]error{
			broken: errors.New("connection reset"),
		},
	}

	svc, err := NewResolver(repo, testLogger())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	result, err := svc.ResolveItems(context.Background(), []uuid.UUID{good1, missing, broken, good2})
	if err != nil {
		t.Fatalf("ResolveItems: %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 resolved items, got %d", len(result.Items))
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(result.Failed))
	}
	if result.Items[0].ID != good1 || result.Items[1].ID != good2 {
		t.Fatal("resolved items out of order or wrong")
	}
}

func TestResolveItemsDropsNonHTTPURLs(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "relative path", url: "/videos/a.mp4"},
		{name: "gs scheme", url: "gs://bucket/a.mp4"},
		{name: "whitespace", url: "   "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.New()
			repo := &stubItemRepo{
				items: map[uuid.UUID]*models.ContentItem{id: testItem(id, tc.url)},
			}
			svc, err := NewResolver(repo, testLogger())
			if err != nil {
				t.Fatalf("NewResolver: %v", err)
			}

			result, err := svc.ResolveItems(context.Background(), []uuid.UUID{id})
			if err != nil {
				t.Fatalf("ResolveItems: %v", err)
			}
			if len(result.Items) != 0 {
				t.Fatalf("expected item dropped, got %d items", len(result.Items))
			}
			if len(result.Failed) != 1 {
				t.Fatalf("expected 1 failure, got %d", len(result.Failed))
			}
		})
	}
}

func TestResolveItemsDedupesAndSkipsNil(t *testing.T) {
	id := uuid.New()
	repo := &stubItemRepo{
		items: map[uuid.UUID]*models.ContentItem{id: testItem(id, "https://cdn.example.com/a.mp4")},
	}
	svc, err := NewResolver(repo, testLogger())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	result, err := svc.ResolveItems(context.Background(), []uuid.UUID{id, id, uuid.Nil, id})
	if err != nil {
		t.Fatalf("ResolveItems: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item after dedupe, got %d", len(result.Items))
	}
	if repo.calls != 1 {
		t.Fatalf("expected a single lookup, got %d", repo.calls)
	}
}

func TestNewResolverValidation(t *testing.T) {
	if _, err := NewResolver(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := NewResolver(&stubItemRepo{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestUsableDeliveryURL(t *testing.T) {
	if !UsableDeliveryURL("https://cdn.example.com/a.mp4") {
		t.Fatal("https url should be usable")
	}
	if !UsableDeliveryURL("http://cdn.example.com/a.mp4") {
		t.Fatal("http url should be usable")
	}
	if UsableDeliveryURL("") || UsableDeliveryURL("ftp://x") || UsableDeliveryURL("/relative") {
		t.Fatal("non-http urls must be rejected")
	}
}
