package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows a post listing. Zero values mean "no constraint".
type PostFilter struct {
	PublishedOnly bool
	Status        string
	// Category and Tags accept numeric IDs or slugs.
	Category string
	Tags     []string
	AuthorID uint
	Search   string
	Ordering string
	Limit    int
	Offset   int
}

// PostRepository defines persistence operations for posts, their likes and views.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tagIDs []uint) error
	Update(ctx context.Context, post *models.Post, tagIDs *[]uint) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error)
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error)
	Archive(ctx context.Context, publishedOnly bool) ([]models.Post, error)
	ListPublic(ctx context.Context, categoryID *uint, limit int) ([]models.Post, error)
	Related(ctx context.Context, post *models.Post, limit int) ([]models.Post, error)
	SuggestTitles(ctx context.Context, q string, limit int) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID, userID uint) (bool, int64, error)
	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	RecordView(ctx context.Context, view *models.PostView, window time.Duration) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

type postTag struct {
	PostID uint
	TagID  uint
}

func (postTag) TableName() string { return "post_tags" }

var postOrderings = map[string]string{
	"created_at":   "posts.created_at",
	"published_at": "posts.published_at",
	"views":        "posts.views",
	"likes":        "posts.likes",
}

const defaultPostOrder = "posts.is_top DESC, COALESCE(posts.published_at, posts.created_at) DESC, posts.created_at DESC"

func withPostDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Category").Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name ASC")
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return setPostTags(tx, post.ID, tagIDs)
	})
	if err != nil {
		return writeError(err, "A post with this slug already exists")
	}
	return nil
}

// Update saves the post's columns. Tags are replaced only when tagIDs is non-nil.
func (r *postRepository) Update(ctx context.Context, post *models.Post, tagIDs *[]uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(post).Error; err != nil {
			return err
		}
		if tagIDs == nil {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&postTag{}).Error; err != nil {
			return err
		}
		return setPostTags(tx, post.ID, *tagIDs)
	})
	if err != nil {
		return writeError(err, "A post with this slug already exists")
	}
	return nil
}

func setPostTags(tx *gorm.DB, postID uint, tagIDs []uint) error {
	seen := make(map[uint]bool, len(tagIDs))
	rows := make([]postTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, postTag{PostID: postID, TagID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// Delete removes a post with its tag links and comments.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&postTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND object_id = ?", models.TargetPost, id).
			Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if deleted == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := withPostDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, lookupError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := withPostDetails(r.db.WithContext(ctx)).Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, lookupError(err, "Post", slug)
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.Post
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	return slugTaken(ctx, r.db, &models.Post{}, slug, excludeID)
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	var total int64
	if err := r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Post{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	q := withPostDetails(r.applyFilter(readDB(r.db).WithContext(ctx), filter)).Order(postOrder(filter.Ordering))
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) applyFilter(q *gorm.DB, f PostFilter) *gorm.DB {
	if f.PublishedOnly {
		q = q.Where("posts.status = ?", models.PostStatusPublished)
	} else if f.Status != "" {
		q = q.Where("posts.status = ?", f.Status)
	}
	if f.Category != "" {
		if id, err := strconv.ParseUint(f.Category, 10, 64); err == nil {
			q = q.Where("posts.category_id = ?", id)
		} else {
			q = q.Where("posts.category_id IN (?)",
				r.db.Model(&models.Category{}).Select("id").Where("slug = ?", f.Category))
		}
	}
	if len(f.Tags) > 0 {
		var ids []uint64
		var slugs []string
		for _, t := range f.Tags {
			if id, err := strconv.ParseUint(t, 10, 64); err == nil {
				ids = append(ids, id)
			} else if t != "" {
				slugs = append(slugs, t)
			}
		}
		tagIDs := r.db.Model(&models.Tag{}).Select("id").Where("(id IN ? OR slug IN ?)", append(ids, 0), append(slugs, ""))
		q = q.Where("posts.id IN (?)",
			r.db.Model(&postTag{}).Select("post_id").Where("tag_id IN (?)", tagIDs))
	}
	if f.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", f.AuthorID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := containsPattern(s)
		q = q.Where(
			"("+likeClause("posts.title")+" OR "+likeClause("posts.excerpt")+" OR "+likeClause("posts.content")+")",
			pattern, pattern, pattern,
		)
	}
	return q
}

// postOrder translates an ordering parameter such as "-views" into SQL.
// Unknown fields fall back to the default order.
func postOrder(ordering string) string {
	ordering = strings.TrimSpace(ordering)
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		ordering = ordering[1:]
	}
	col, ok := postOrderings[ordering]
	if !ok {
		return defaultPostOrder
	}
	return col + " " + dir + ", posts.id DESC"
}

func (r *postRepository) Archive(ctx context.Context, publishedOnly bool) ([]models.Post, error) {
	q := withPostDetails(readDB(r.db).WithContext(ctx))
	if publishedOnly {
		q = q.Where("status = ?", models.PostStatusPublished)
	}
	var posts []models.Post
	if err := q.Order("COALESCE(published_at, created_at) DESC, id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListPublic returns published posts without a password, newest first.
// A limit of zero returns every such post.
func (r *postRepository) ListPublic(ctx context.Context, categoryID *uint, limit int) ([]models.Post, error) {
	q := withPostDetails(readDB(r.db).WithContext(ctx)).
		Where("status = ? AND is_encrypted = ?", models.PostStatusPublished, false)
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var posts []models.Post
	if err := q.Order("COALESCE(published_at, created_at) DESC, id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Related finds published posts sharing the category or any tag with post.
func (r *postRepository) Related(ctx context.Context, post *models.Post, limit int) ([]models.Post, error) {
	tagIDs := make([]uint, 0, len(post.Tags))
	for _, t := range post.Tags {
		tagIDs = append(tagIDs, t.ID)
	}
	if post.CategoryID == nil && len(tagIDs) == 0 {
		return []models.Post{}, nil
	}

	q := withPostDetails(readDB(r.db).WithContext(ctx)).
		Where("status = ? AND id <> ?", models.PostStatusPublished, post.ID)
	switch {
	case post.CategoryID != nil && len(tagIDs) > 0:
		q = q.Where("(category_id = ? OR id IN (?))", *post.CategoryID,
			r.db.Model(&postTag{}).Select("post_id").Where("tag_id IN ?", tagIDs))
	case post.CategoryID != nil:
		q = q.Where("category_id = ?", *post.CategoryID)
	default:
		q = q.Where("id IN (?)", r.db.Model(&postTag{}).Select("post_id").Where("tag_id IN ?", tagIDs))
	}

	var posts []models.Post
	if err := q.Order("COALESCE(published_at, created_at) DESC, id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) SuggestTitles(ctx context.Context, q string, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := readDB(r.db).WithContext(ctx).
		Select("id", "title", "slug").
		Where("status = ? AND is_encrypted = ?", models.PostStatusPublished, false).
		Where(likeClause("title"), containsPattern(q)).
		Order("views DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ToggleLike flips the user's like and returns the new state with the
// post's like counter.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, int64, error) {
	var liked bool
	var likes int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		liked, err = toggleRow(tx, &models.PostLike{}, &models.PostLike{PostID: postID, UserID: userID},
			"post_id = ? AND user_id = ?", postID, userID)
		if err != nil {
			return err
		}
		expr := decrementExpr("likes")
		if liked {
			expr = incrementExpr("likes")
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("likes", expr).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("likes", &likes).Error
	})
	if err != nil {
		return false, 0, writeError(err, "Like already recorded")
	}
	return liked, likes, nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// RecordView stores a view and bumps the counter unless the same address
// already viewed the post within window. A zero window counts every view.
func (r *postRepository) RecordView(ctx context.Context, view *models.PostView, window time.Duration) (bool, error) {
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}
	recorded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if window > 0 {
			var seen int64
			if err := tx.Model(&models.PostView{}).
				Where("post_id = ? AND ip_address = ? AND viewed_at >= ?", view.PostID, view.IPAddress, view.ViewedAt.Add(-window)).
				Count(&seen).Error; err != nil {
				return err
			}
			if seen > 0 {
				return nil
			}
		}
		if err := tx.Create(view).Error; err != nil {
			return err
		}
		recorded = true
		return tx.Model(&models.Post{}).Where("id = ?", view.PostID).UpdateColumn("views", incrementExpr("views")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return recorded, nil
}
