package content

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

func setupContentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	contentItems := `
CREATE TABLE IF NOT EXISTS content_items (
  id TEXT PRIMARY KEY,
  creator_id TEXT NOT NULL,
  title TEXT NOT NULL,
  file_name TEXT NOT NULL,
  delivery_url TEXT NOT NULL,
  thumbnail_url TEXT,
  mime_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  duration_secs REAL,
  content_type TEXT NOT NULL,
  gcs_key TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(contentItems).Error)
	return db
}

func TestContentRepositoryCreateAndFind(t *testing.T) {
	db := setupContentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	item := &models.ContentItem{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		Title:       "Intro Video",
		FileName:    "intro.mp4",
		DeliveryURL: "https://cdn.example.com/intro.mp4",
		MimeType:    "video/mp4",
		SizeBytes:   2048,
		ContentType: enums.ContentTypeVideo,
	}

	created, err := repo.Create(ctx, item)
	require.NoError(t, err)
	require.Equal(t, item.ID, created.ID)

	found, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro Video", found.Title)
	require.Equal(t, enums.ContentTypeVideo, found.ContentType)

	_, err = repo.FindByID(ctx, uuid.New())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestContentRepositoryListByCreator(t *testing.T) {
	db := setupContentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	creatorID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &models.ContentItem{
			ID:          uuid.New(),
			CreatorID:   creatorID,
			Title:       "Track",
			FileName:    "track.mp3",
			DeliveryURL: "https://cdn.example.com/track.mp3",
			MimeType:    "audio/mpeg",
			SizeBytes:   512,
			ContentType: enums.ContentTypeAudio,
		})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &models.ContentItem{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		Title:       "Other",
		FileName:    "o.pdf",
		DeliveryURL: "https://cdn.example.com/o.pdf",
		MimeType:    "application/pdf",
		SizeBytes:   64,
		ContentType: enums.ContentTypeDocument,
	})
	require.NoError(t, err)

	rows, err := repo.ListByCreator(ctx, creatorID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}
