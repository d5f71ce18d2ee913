package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
)

type contentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) (*models.ContentItem, error)
}

type urlSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

// Service hands out presigned upload URLs and records the item metadata. The
// upload itself goes straight from the client to object storage.
type Service interface {
	PresignUpload(ctx context.Context, creatorID uuid.UUID, input PresignInput) (*PresignResult, error)
}

// PresignInput describes the file a creator wants to upload.
type PresignInput struct {
	Title        string
	FileName     string
	MimeType     string
	SizeBytes    int64
	DurationSecs *float64
}

// PresignResult carries the upload URL plus the created content-item record.
type PresignResult struct {
	UploadURL string
	Item      *models.ContentItem
}

type service struct {
	repo        contentRepository
	signer      urlSigner
	bucket      string
	uploadTTL   time.Duration
	maxUploadMB int
}

// NewService builds the media presign service.
func NewService(repo contentRepository, signer urlSigner, bucket string, uploadTTL time.Duration, maxUploadMB int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	if signer == nil {
		return nil, fmt.Errorf("url signer required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if uploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	if maxUploadMB <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	return &service{
		repo:        repo,
		signer:      signer,
		bucket:      bucket,
		uploadTTL:   uploadTTL,
		maxUploadMB: maxUploadMB,
	}, nil
}

func (s *service) PresignUpload(ctx context.Context, creatorID uuid.UUID, input PresignInput) (*PresignResult, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator identity missing")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if mimeType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mime_type is required")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}
	if input.SizeBytes > int64(s.maxUploadMB)*1024*1024 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d MB limit", s.maxUploadMB))
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(input.FileName, path.Ext(input.FileName))
	}

	contentType := enums.ClassifyMime(mimeType)
	itemID := uuid.New()
	gcsKey := objectKey(creatorID, itemID, contentType, input.FileName)

	uploadURL, err := s.signer.SignedURL(s.bucket, gcsKey, mimeType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate signed upload url")
	}

	item := &models.ContentItem{
		ID:           itemID,
		CreatorID:    creatorID,
		Title:        title,
		FileName:     input.FileName,
		DeliveryURL:  deliveryURL(s.bucket, gcsKey),
		MimeType:     mimeType,
		SizeBytes:    input.SizeBytes,
		DurationSecs: input.DurationSecs,
		ContentType:  contentType,
		GCSKey:       &gcsKey,
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create content item")
	}

	return &PresignResult{UploadURL: uploadURL, Item: created}, nil
}

// objectKey namespaces uploads by creator and content class so bucket
// lifecycle rules can target them separately.
func objectKey(creatorID, itemID uuid.UUID, contentType enums.ContentType, fileName string) string {
	return fmt.Sprintf("content/%s/%s/%s/%s", creatorID, contentType, itemID, sanitizeFileName(fileName))
}

func deliveryURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "#", "", "?", "", "&", "", "%", "")
	return replacer.Replace(name)
}
