package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments and comment likes.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
	ListApprovedForTarget(ctx context.Context, contentType string, objectID uint) ([]models.Comment, error)
	ListLatestApproved(ctx context.Context, contentType string, publicOnly bool, limit int) ([]models.Comment, error)
	ListForModeration(ctx context.Context, approved *bool, limit, offset int) ([]models.Comment, int64, error)
	SetApproved(ctx context.Context, id uint, approved bool) error
	CountInThread(ctx context.Context, id uint) (int64, error)
	ApprovedCounts(ctx context.Context, contentType string, objectIDs []uint) (map[uint]int64, error)
	ToggleLike(ctx context.Context, commentID, userID uint) (bool, int64, error)
	LikeCounts(ctx context.Context, commentIDs []uint) (map[uint]int64, error)
	LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Parent").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, lookupError(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Parent").Save(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// ListApprovedForTarget returns every approved comment on the target,
// replies included, newest first.
func (r *commentRepository) ListApprovedForTarget(ctx context.Context, contentType string, objectID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("content_type = ? AND object_id = ? AND is_approved = ?", contentType, objectID, true).
		Order("created_at DESC, id DESC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListLatestApproved returns the newest approved comments, optionally
// restricted to one content type. With publicOnly, comments on draft posts
// and private moments are left out.
func (r *commentRepository) ListLatestApproved(ctx context.Context, contentType string, publicOnly bool, limit int) ([]models.Comment, error) {
	q := readDB(r.db).WithContext(ctx).Preload("Author").Where("is_approved = ?", true)
	if contentType != "" {
		q = q.Where("content_type = ?", contentType)
	}
	if publicOnly {
		q = q.Where(
			"((content_type = ? AND object_id IN (?)) OR (content_type = ? AND object_id IN (?)) OR content_type = ?)",
			models.TargetPost, r.db.Model(&models.Post{}).Select("id").Where("status = ?", models.PostStatusPublished),
			models.TargetMoment, r.db.Model(&models.Moment{}).Select("id").Where("visibility = ?", models.VisibilityPublic),
			models.TargetAlbum,
		)
	}
	var comments []models.Comment
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) ListForModeration(ctx context.Context, approved *bool, limit, offset int) ([]models.Comment, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if approved != nil {
			q = q.Where("is_approved = ?", *approved)
		}
		return q
	}

	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&models.Comment{})).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var comments []models.Comment
	if err := scope(r.db.WithContext(ctx)).
		Preload("Author").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

func (r *commentRepository) SetApproved(ctx context.Context, id uint, approved bool) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("is_approved", approved)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// CountInThread counts the comment and all of its descendants, which is how
// many rows deleting it removes.
func (r *commentRepository) CountInThread(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw(`
		WITH RECURSIVE thread(id) AS (
			SELECT id FROM comments WHERE id = ?
			UNION ALL
			SELECT c.id FROM comments c JOIN thread t ON c.parent_id = t.id
		)
		SELECT COUNT(*) FROM thread`, id).Scan(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *commentRepository) ApprovedCounts(ctx context.Context, contentType string, objectIDs []uint) (map[uint]int64, error) {
	if len(objectIDs) == 0 {
		return map[uint]int64{}, nil
	}
	counts, err := countBy(readDB(r.db).WithContext(ctx), &models.Comment{}, "object_id", func(q *gorm.DB) *gorm.DB {
		return q.Where("content_type = ? AND is_approved = ? AND object_id IN ?", contentType, true, objectIDs)
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

// ToggleLike flips the user's like on a comment and returns the new state
// with the comment's like count.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID uint) (bool, int64, error) {
	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		liked, err = toggleRow(tx, &models.CommentLike{}, &models.CommentLike{CommentID: commentID, UserID: userID},
			"comment_id = ? AND user_id = ?", commentID, userID)
		if err != nil {
			return err
		}
		return tx.Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&count).Error
	})
	if err != nil {
		return false, 0, writeError(err, "Like already recorded")
	}
	return liked, count, nil
}

func (r *commentRepository) LikeCounts(ctx context.Context, commentIDs []uint) (map[uint]int64, error) {
	if len(commentIDs) == 0 {
		return map[uint]int64{}, nil
	}
	counts, err := countBy(readDB(r.db).WithContext(ctx), &models.CommentLike{}, "comment_id", func(q *gorm.DB) *gorm.DB {
		return q.Where("comment_id IN ?", commentIDs)
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *commentRepository) LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(commentIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
