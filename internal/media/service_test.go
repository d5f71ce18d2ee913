package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
)

type stubContentRepo struct {
	created *models.ContentItem
	err     error
}

func (s *stubContentRepo) Create(ctx context.Context, item *models.ContentItem) (*models.ContentItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = item
	return item, nil
}

type stubSigner struct {
	lastBucket      string
	lastObject      string
	lastContentType string
	err             error
}

func (s *stubSigner) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.lastBucket = bucket
	s.lastObject = object
	s.lastContentType = contentType
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?signed=1", nil
}

func newTestService(t *testing.T, repo *stubContentRepo, signer *stubSigner) Service {
	t.Helper()
	svc, err := NewService(repo, signer, "bundleup-media", 15*time.Minute, 500)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestPresignUploadSuccess(t *testing.T) {
	repo := &stubContentRepo{}
	signer := &stubSigner{}
	svc := newTestService(t, repo, signer)
	creatorID := uuid.New()

	result, err := svc.PresignUpload(context.Background(), creatorID, PresignInput{
		FileName:  "My Beat #1.mp3",
		MimeType:  "Audio/MPEG",
		SizeBytes: 4 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}

	if result.UploadURL == "" {
		t.Fatal("expected upload url")
	}
	item := repo.created
	if item == nil {
		t.Fatal("expected content item written")
	}
	if item.ContentType != enums.ContentTypeAudio {
		t.Fatalf("expected audio classification, got %s", item.ContentType)
	}
	if item.MimeType != "audio/mpeg" {
		t.Fatalf("mime type should be normalized, got %q", item.MimeType)
	}
	if item.Title != "My Beat #1" {
		t.Fatalf("title should default to file name stem, got %q", item.Title)
	}
	if !strings.HasPrefix(item.DeliveryURL, "https://storage.googleapis.com/bundleup-media/content/") {
		t.Fatalf("unexpected delivery url %q", item.DeliveryURL)
	}
	if strings.Contains(signer.lastObject, " ") || strings.Contains(signer.lastObject, "#") {
		t.Fatalf("object key should be sanitized, got %q", signer.lastObject)
	}
	if item.GCSKey == nil || *item.GCSKey != signer.lastObject {
		t.Fatal("stored gcs key must match the signed object")
	}
	if signer.lastContentType != "audio/mpeg" {
		t.Fatalf("signed content type mismatch: %q", signer.lastContentType)
	}
}

func TestPresignUploadValidation(t *testing.T) {
	svc := newTestService(t, &stubContentRepo{}, &stubSigner{})
	ctx := context.Background()

	cases := []struct {
		name      string
		creatorID uuid.UUID
		input     PresignInput
	}{
		{name: "missing creator", creatorID: uuid.Nil, input: PresignInput{FileName: "a.mp4", MimeType: "video/mp4", SizeBytes: 1}},
		{name: "missing file name", creatorID: uuid.New(), input: PresignInput{MimeType: "video/mp4", SizeBytes: 1}},
		{name: "missing mime", creatorID: uuid.New(), input: PresignInput{FileName: "a.mp4", SizeBytes: 1}},
		{name: "zero size", creatorID: uuid.New(), input: PresignInput{FileName: "a.mp4", MimeType: "video/mp4"}},
		{name: "over limit", creatorID: uuid.New(), input: PresignInput{FileName: "a.mp4", MimeType: "video/mp4", SizeBytes: 501 * 1024 * 1024}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PresignUpload(ctx, tc.creatorID, tc.input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPresignUploadSignerFailure(t *testing.T) {
	repo := &stubContentRepo{}
	signer := &stubSigner{err: errors.New("no key")}
	svc := newTestService(t, repo, signer)

	_, err := svc.PresignUpload(context.Background(), uuid.New(), PresignInput{
		FileName:  "a.mp4",
		MimeType:  "video/mp4",
		SizeBytes: 1,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("no item must be written when signing fails")
	}
}
