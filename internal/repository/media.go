package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// MediaRepository stores uploaded media metadata.
type MediaRepository interface {
	GetByHash(ctx context.Context, hash string) (*models.MediaAsset, error)
	Create(ctx context.Context, asset *models.MediaAsset) error
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository returns a new MediaRepository implementation.
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

// GetByHash returns nil without error for unknown content.
func (r *mediaRepository) GetByHash(ctx context.Context, hash string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &asset, nil
}

func (r *mediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return writeError(err, "Media already uploaded")
	}
	return nil
}
