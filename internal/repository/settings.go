package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository reads and writes the singleton site settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
	Save(ctx context.Context, settings *models.SiteSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository returns a new SettingsRepository implementation.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get loads the settings row, creating it with defaults on first access.
func (r *settingsRepository) Get(ctx context.Context) (*models.SiteSettings, error) {
	var settings models.SiteSettings
	err := r.db.WithContext(ctx).
		Where("id = ?", models.SiteSettingsID).
		Attrs(models.DefaultSiteSettings()).
		FirstOrCreate(&settings).Error
	if err != nil && isUniqueConstraintError(err) {
		// lost a race with a concurrent first access
		err = r.db.WithContext(ctx).First(&settings, models.SiteSettingsID).Error
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *models.SiteSettings) error {
	settings.ID = models.SiteSettingsID
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// NavigationRepository defines persistence operations for navigation items.
type NavigationRepository interface {
	List(ctx context.Context, visibleOnly bool) ([]models.NavigationItem, error)
	GetByID(ctx context.Context, id uint) (*models.NavigationItem, error)
	GetByURL(ctx context.Context, url string) (*models.NavigationItem, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, item *models.NavigationItem) error
	Update(ctx context.Context, item *models.NavigationItem) error
	Delete(ctx context.Context, id uint) error
	EnsureAll(ctx context.Context, items []models.NavigationItem) (int, error)
}

type navigationRepository struct {
	db *gorm.DB
}

// NewNavigationRepository returns a new NavigationRepository implementation.
func NewNavigationRepository(db *gorm.DB) NavigationRepository {
	return &navigationRepository{db: db}
}

func (r *navigationRepository) List(ctx context.Context, visibleOnly bool) ([]models.NavigationItem, error) {
	q := r.db.WithContext(ctx)
	if visibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	var items []models.NavigationItem
	if err := q.Order("sort_order ASC, id ASC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *navigationRepository) GetByID(ctx context.Context, id uint) (*models.NavigationItem, error) {
	var item models.NavigationItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, lookupError(err, "Navigation item", id)
	}
	return &item, nil
}

// GetByURL returns nil without error when no item has the URL.
func (r *navigationRepository) GetByURL(ctx context.Context, url string) (*models.NavigationItem, error) {
	var item models.NavigationItem
	if err := r.db.WithContext(ctx).Where("url = ?", url).Order("id ASC").First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &item, nil
}

func (r *navigationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.NavigationItem{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *navigationRepository) Create(ctx context.Context, item *models.NavigationItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *navigationRepository) Update(ctx context.Context, item *models.NavigationItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *navigationRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.NavigationItem{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Navigation item", id)
	}
	return nil
}

// EnsureAll creates each item whose URL is not yet present and reports how
// many were created.
func (r *navigationRepository) EnsureAll(ctx context.Context, items []models.NavigationItem) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			var n int64
			if err := tx.Model(&models.NavigationItem{}).Where("url = ?", items[i].URL).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return created, nil
}
