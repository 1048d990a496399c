package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// LinkRepository defines persistence operations for links and link categories.
type LinkRepository interface {
	ListCategories(ctx context.Context, visibleLinksOnly bool) ([]models.LinkCategory, error)
	GetCategory(ctx context.Context, id uint) (*models.LinkCategory, error)
	CreateCategory(ctx context.Context, category *models.LinkCategory) error
	UpdateCategory(ctx context.Context, category *models.LinkCategory) error
	DeleteCategory(ctx context.Context, id uint) error

	List(ctx context.Context, visibleOnly bool, categoryID *uint) ([]models.Link, error)
	GetByID(ctx context.Context, id uint) (*models.Link, error)
	Create(ctx context.Context, link *models.Link) error
	Update(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, id uint) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a new LinkRepository implementation.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

const linkOrder = "sort_order ASC, created_at ASC, id ASC"

// ListCategories returns categories with their links preloaded. With
// visibleLinksOnly hidden links are skipped.
func (r *linkRepository) ListCategories(ctx context.Context, visibleLinksOnly bool) ([]models.LinkCategory, error) {
	var categories []models.LinkCategory
	err := readDB(r.db).WithContext(ctx).
		Preload("Links", func(db *gorm.DB) *gorm.DB {
			if visibleLinksOnly {
				db = db.Where("is_visible = ?", true)
			}
			return db.Order(linkOrder)
		}).
		Order("sort_order ASC, name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}

func (r *linkRepository) GetCategory(ctx context.Context, id uint) (*models.LinkCategory, error) {
	var category models.LinkCategory
	if err := r.db.WithContext(ctx).
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order(linkOrder) }).
		First(&category, id).Error; err != nil {
		return nil, lookupError(err, "Link category", id)
	}
	return &category, nil
}

func (r *linkRepository) CreateCategory(ctx context.Context, category *models.LinkCategory) error {
	if err := r.db.WithContext(ctx).Omit("Links").Create(category).Error; err != nil {
		return writeError(err, "A link category with this name already exists")
	}
	return nil
}

func (r *linkRepository) UpdateCategory(ctx context.Context, category *models.LinkCategory) error {
	if err := r.db.WithContext(ctx).Omit("Links").Save(category).Error; err != nil {
		return writeError(err, "A link category with this name already exists")
	}
	return nil
}

// DeleteCategory removes the category and leaves its links uncategorized.
func (r *linkRepository) DeleteCategory(ctx context.Context, id uint) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Link{}).Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.LinkCategory{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if deleted == 0 {
		return models.NewNotFoundError("Link category", id)
	}
	return nil
}

func (r *linkRepository) List(ctx context.Context, visibleOnly bool, categoryID *uint) ([]models.Link, error) {
	q := readDB(r.db).WithContext(ctx)
	if visibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var links []models.Link
	if err := q.Order(linkOrder).Find(&links).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return links, nil
}

func (r *linkRepository) GetByID(ctx context.Context, id uint) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		return nil, lookupError(err, "Link", id)
	}
	return &link, nil
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Omit("Category").Create(link).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *linkRepository) Update(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Omit("Category").Save(link).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Link{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Link", id)
	}
	return nil
}
