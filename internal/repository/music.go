package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// MusicRepository defines persistence operations for playlist tracks.
type MusicRepository interface {
	List(ctx context.Context, publishedOnly bool) ([]models.Music, error)
	GetByID(ctx context.Context, id uint) (*models.Music, error)
	Create(ctx context.Context, track *models.Music) error
	Update(ctx context.Context, track *models.Music) error
	Delete(ctx context.Context, id uint) error
}

type musicRepository struct {
	db *gorm.DB
}

// NewMusicRepository returns a new MusicRepository implementation.
func NewMusicRepository(db *gorm.DB) MusicRepository {
	return &musicRepository{db: db}
}

func (r *musicRepository) List(ctx context.Context, publishedOnly bool) ([]models.Music, error) {
	q := readDB(r.db).WithContext(ctx)
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	var tracks []models.Music
	if err := q.Order("sort_order ASC, created_at DESC, id DESC").Find(&tracks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tracks, nil
}

func (r *musicRepository) GetByID(ctx context.Context, id uint) (*models.Music, error) {
	var track models.Music
	if err := r.db.WithContext(ctx).First(&track, id).Error; err != nil {
		return nil, lookupError(err, "Music", id)
	}
	return &track, nil
}

func (r *musicRepository) Create(ctx context.Context, track *models.Music) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(track).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *musicRepository) Update(ctx context.Context, track *models.Music) error {
	if err := r.db.WithContext(ctx).Omit("Author").Save(track).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *musicRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Music{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Music", id)
	}
	return nil
}
