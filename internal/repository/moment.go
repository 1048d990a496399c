package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// MomentRepository defines persistence operations for moments and their likes.
type MomentRepository interface {
	Create(ctx context.Context, moment *models.Moment) error
	GetByID(ctx context.Context, id uint) (*models.Moment, error)
	Update(ctx context.Context, moment *models.Moment) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, viewerID uint, includePrivate bool, limit, offset int) ([]models.Moment, int64, error)
	ToggleLike(ctx context.Context, momentID, userID uint) (bool, int64, error)
	LikedIDs(ctx context.Context, userID uint, momentIDs []uint) (map[uint]bool, error)
	AdjustCommentsCount(ctx context.Context, id uint, delta int64) error
}

type momentRepository struct {
	db *gorm.DB
}

// NewMomentRepository returns a new MomentRepository implementation.
func NewMomentRepository(db *gorm.DB) MomentRepository {
	return &momentRepository{db: db}
}

func (r *momentRepository) Create(ctx context.Context, moment *models.Moment) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(moment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *momentRepository) GetByID(ctx context.Context, id uint) (*models.Moment, error) {
	var moment models.Moment
	if err := r.db.WithContext(ctx).Preload("Author").First(&moment, id).Error; err != nil {
		return nil, lookupError(err, "Moment", id)
	}
	return &moment, nil
}

func (r *momentRepository) Update(ctx context.Context, moment *models.Moment) error {
	if err := r.db.WithContext(ctx).Omit("Author").Save(moment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a moment and the comments attached to it.
func (r *momentRepository) Delete(ctx context.Context, id uint) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_type = ? AND object_id = ?", models.TargetMoment, id).
			Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Moment{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if deleted == 0 {
		return models.NewNotFoundError("Moment", id)
	}
	return nil
}

// List returns public moments plus the viewer's own private ones. With
// includePrivate every moment is returned.
func (r *momentRepository) List(ctx context.Context, viewerID uint, includePrivate bool, limit, offset int) ([]models.Moment, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if includePrivate {
			return q
		}
		if viewerID == 0 {
			return q.Where("visibility = ?", models.VisibilityPublic)
		}
		return q.Where("(visibility = ? OR author_id = ?)", models.VisibilityPublic, viewerID)
	}

	var total int64
	if err := scope(readDB(r.db).WithContext(ctx).Model(&models.Moment{})).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var moments []models.Moment
	if err := scope(readDB(r.db).WithContext(ctx)).
		Preload("Author").
		Order("published_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&moments).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return moments, total, nil
}

func (r *momentRepository) ToggleLike(ctx context.Context, momentID, userID uint) (bool, int64, error) {
	var liked bool
	var likes int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		liked, err = toggleRow(tx, &models.MomentLike{}, &models.MomentLike{MomentID: momentID, UserID: userID},
			"moment_id = ? AND user_id = ?", momentID, userID)
		if err != nil {
			return err
		}
		expr := decrementExpr("likes")
		if liked {
			expr = incrementExpr("likes")
		}
		if err := tx.Model(&models.Moment{}).Where("id = ?", momentID).UpdateColumn("likes", expr).Error; err != nil {
			return err
		}
		return tx.Model(&models.Moment{}).Where("id = ?", momentID).Pluck("likes", &likes).Error
	})
	if err != nil {
		return false, 0, writeError(err, "Like already recorded")
	}
	return liked, likes, nil
}

func (r *momentRepository) LikedIDs(ctx context.Context, userID uint, momentIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(momentIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.MomentLike{}).
		Where("user_id = ? AND moment_id IN ?", userID, momentIDs).
		Pluck("moment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// AdjustCommentsCount shifts the cached comment counter, never below zero.
func (r *momentRepository) AdjustCommentsCount(ctx context.Context, id uint, delta int64) error {
	if delta == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.Moment{}).Where("id = ?", id).
		UpdateColumn("comments_count", gorm.Expr(
			"CASE WHEN comments_count + ? < 0 THEN 0 ELSE comments_count + ? END", delta, delta,
		)).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
