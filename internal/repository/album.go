package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// AlbumRepository defines persistence operations for albums and photos.
type AlbumRepository interface {
	List(ctx context.Context) ([]models.Album, error)
	GetByID(ctx context.Context, id uint) (*models.Album, error)
	GetBySlug(ctx context.Context, slug string) (*models.Album, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Album, error)
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	Create(ctx context.Context, album *models.Album) error
	Update(ctx context.Context, album *models.Album) error
	Delete(ctx context.Context, id uint) error
	PhotoCounts(ctx context.Context, albumIDs []uint) (map[uint]int64, error)

	ListPhotos(ctx context.Context, albumIDs []uint) ([]models.Photo, error)
	GetPhoto(ctx context.Context, id uint) (*models.Photo, error)
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	UpdatePhoto(ctx context.Context, photo *models.Photo) error
	DeletePhoto(ctx context.Context, id uint) error
}

type albumRepository struct {
	db *gorm.DB
}

// NewAlbumRepository returns a new AlbumRepository implementation.
func NewAlbumRepository(db *gorm.DB) AlbumRepository {
	return &albumRepository{db: db}
}

func (r *albumRepository) List(ctx context.Context) ([]models.Album, error) {
	var albums []models.Album
	if err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Order("sort_order ASC, created_at DESC, id DESC").
		Find(&albums).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return albums, nil
}

func (r *albumRepository) GetByID(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	if err := r.db.WithContext(ctx).Preload("Author").First(&album, id).Error; err != nil {
		return nil, lookupError(err, "Album", id)
	}
	return &album, nil
}

func (r *albumRepository) GetBySlug(ctx context.Context, slug string) (*models.Album, error) {
	var album models.Album
	if err := r.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug).First(&album).Error; err != nil {
		return nil, lookupError(err, "Album", slug)
	}
	return &album, nil
}

func (r *albumRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var albums []models.Album
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&albums).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return albums, nil
}

func (r *albumRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	return slugTaken(ctx, r.db, &models.Album{}, slug, excludeID)
}

func (r *albumRepository) Create(ctx context.Context, album *models.Album) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Photos").Create(album).Error; err != nil {
		return writeError(err, "An album with this slug already exists")
	}
	return nil
}

func (r *albumRepository) Update(ctx context.Context, album *models.Album) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Photos").Save(album).Error; err != nil {
		return writeError(err, "An album with this slug already exists")
	}
	return nil
}

// Delete removes the album, its photos and the comments attached to it.
func (r *albumRepository) Delete(ctx context.Context, id uint) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_type = ? AND object_id = ?", models.TargetAlbum, id).
			Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", id).Delete(&models.Photo{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Album{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if deleted == 0 {
		return models.NewNotFoundError("Album", id)
	}
	return nil
}

func (r *albumRepository) PhotoCounts(ctx context.Context, albumIDs []uint) (map[uint]int64, error) {
	if len(albumIDs) == 0 {
		return map[uint]int64{}, nil
	}
	counts, err := countBy(readDB(r.db).WithContext(ctx), &models.Photo{}, "album_id", func(q *gorm.DB) *gorm.DB {
		return q.Where("album_id IN ?", albumIDs)
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

// ListPhotos returns photos ordered for display. A nil albumIDs lists every
// photo; an empty one lists none.
func (r *albumRepository) ListPhotos(ctx context.Context, albumIDs []uint) ([]models.Photo, error) {
	if albumIDs != nil && len(albumIDs) == 0 {
		return []models.Photo{}, nil
	}
	q := readDB(r.db).WithContext(ctx)
	if albumIDs != nil {
		q = q.Where("album_id IN ?", albumIDs)
	}
	var photos []models.Photo
	if err := q.Order("sort_order ASC, created_at ASC, id ASC").Find(&photos).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return photos, nil
}

func (r *albumRepository) GetPhoto(ctx context.Context, id uint) (*models.Photo, error) {
	var photo models.Photo
	if err := r.db.WithContext(ctx).Preload("Album").First(&photo, id).Error; err != nil {
		return nil, lookupError(err, "Photo", id)
	}
	return &photo, nil
}

func (r *albumRepository) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	if err := r.db.WithContext(ctx).Omit("Album").Create(photo).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *albumRepository) UpdatePhoto(ctx context.Context, photo *models.Photo) error {
	if err := r.db.WithContext(ctx).Omit("Album").Save(photo).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *albumRepository) DeletePhoto(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Photo{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Photo", id)
	}
	return nil
}
