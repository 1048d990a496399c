package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"inkwell/internal/access"
	"inkwell/internal/content"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

const (
	maxTitleLen        = 200
	maxExcerptLen      = 500
	relatedPostsLimit  = 5
	hotPostsLimit      = 10
	suggestionsLimit   = 8
	viewDedupeWindow   = time.Hour
	defaultDraftTitle  = "Untitled draft"
	postSlugFallback   = "post"
	suggestionPost     = "post"
	suggestionTag      = "tag"
	suggestionCategory = "category"
)

// PostService implements post listing, publishing and reader interactions.
type PostService struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	tags       repository.TagRepository
	comments   repository.CommentRepository
	events     EventPublisher
	flags      *featureflags.Manager
	now        func() time.Time
}

// PostQuery filters the post list.
type PostQuery struct {
	Category string
	Tags     []string
	AuthorID uint
	Search   string
	Status   string
	Ordering string
	Limit    int
	Offset   int
}

// PostInput carries writable post fields. Nil fields are left unchanged on
// update. CategorySet distinguishes "clear the category" from "not sent".
type PostInput struct {
	Title        *string
	Slug         *string
	Excerpt      *string
	Content      *string
	Cover        *string
	CategoryID   *uint
	CategorySet  bool
	TagIDs       *[]uint
	Status       *string
	IsTop        *bool
	IsOriginal   *bool
	AllowComment *bool
	IsEncrypted  *bool
	Password     *string
	PublishedAt  *time.Time
}

// DraftInput is the subset of fields autosave may touch.
type DraftInput struct {
	Title       *string
	Content     *string
	Excerpt     *string
	CategoryID  *uint
	CategorySet bool
	TagIDs      *[]uint
}

// Visit describes the client reading a post.
type Visit struct {
	IP        string
	UserAgent string
}

func NewPostService(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	tags repository.TagRepository,
	comments repository.CommentRepository,
	events EventPublisher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		posts:      posts,
		categories: categories,
		tags:       tags,
		comments:   comments,
		events:     events,
		flags:      flags,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns a page of posts. Anonymous and non-staff viewers only see
// published posts, and only staff may filter by status.
func (s *PostService) List(ctx context.Context, viewer Viewer, q PostQuery) ([]PostListItem, int64, error) {
	filter := repository.PostFilter{
		PublishedOnly: !viewer.IsStaff,
		Category:      q.Category,
		Tags:          q.Tags,
		AuthorID:      q.AuthorID,
		Search:        strings.TrimSpace(q.Search),
		Ordering:      q.Ordering,
		Limit:         q.Limit,
		Offset:        q.Offset,
	}
	if viewer.IsStaff {
		filter.Status = q.Status
	}
	posts, total, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return newPostListItems(posts), total, nil
}

// getVisible loads a post by slug, hiding drafts from non-staff viewers.
func (s *PostService) getVisible(ctx context.Context, slug string, viewer Viewer) (*models.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() && !viewer.IsStaff {
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, nil
}

// Get returns a post's detail view. A non-nil visit is counted as a view.
func (s *PostService) Get(ctx context.Context, slug string, viewer Viewer, unlock Unlocker, visit *Visit) (*PostDetail, error) {
	post, err := s.getVisible(ctx, slug, viewer)
	if err != nil {
		return nil, err
	}

	if visit != nil {
		window := time.Duration(0)
		if s.flags == nil || s.flags.On(featureflags.ViewDedupe) {
			window = viewDedupeWindow
		}
		recorded, err := s.posts.RecordView(ctx, &models.PostView{
			PostID:    post.ID,
			IPAddress: visit.IP,
			UserAgent: content.Truncate(visit.UserAgent, 500),
			ViewedAt:  s.now(),
		}, window)
		if err != nil {
			return nil, err
		}
		if recorded {
			post.Views++
			observability.PostViews.Inc()
		}
	}

	liked, err := s.posts.IsLiked(ctx, post.ID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	return newPostDetail(post, s.unlocked(post, viewer, unlock), liked), nil
}

func (s *PostService) unlocked(post *models.Post, viewer Viewer, unlock Unlocker) bool {
	if !post.IsEncrypted || viewer.IsStaff {
		return true
	}
	return unlock.unlocked(access.KindPost, post.ID, post.PasswordUpdatedAt)
}

// Create validates and stores a new post written by authorID.
func (s *PostService) Create(ctx context.Context, authorID uint, in PostInput) (*PostDetail, error) {
	post := &models.Post{
		AuthorID:     authorID,
		Status:       models.PostStatusDraft,
		IsOriginal:   true,
		AllowComment: true,
	}
	if in.Title == nil {
		return nil, models.NewFieldValidationError("title", "title is required")
	}
	if in.Content == nil {
		return nil, models.NewFieldValidationError("content", "content is required")
	}
	tagIDs, err := s.applyInput(ctx, post, in)
	if err != nil {
		return nil, err
	}
	if err := s.beforeSave(ctx, post, in.Password, in.Slug != nil); err != nil {
		return nil, err
	}

	var ids []uint
	if tagIDs != nil {
		ids = *tagIDs
	}
	if err := s.posts.Create(ctx, post, ids); err != nil {
		return nil, err
	}
	return s.reload(ctx, post.ID)
}

// Update applies a partial update to the post identified by slug.
func (s *PostService) Update(ctx context.Context, slug string, in PostInput) (*PostDetail, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.applyInput(ctx, post, in)
	if err != nil {
		return nil, err
	}
	if err := s.beforeSave(ctx, post, in.Password, in.Slug != nil); err != nil {
		return nil, err
	}
	if err := s.posts.Update(ctx, post, tagIDs); err != nil {
		return nil, err
	}
	return s.reload(ctx, post.ID)
}

func (s *PostService) reload(ctx context.Context, id uint) (*PostDetail, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return newPostDetail(post, true, false), nil
}

// Delete removes a post with its likes, views, tag links and comments.
func (s *PostService) Delete(ctx context.Context, slug string) error {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.posts.Delete(ctx, post.ID)
}

// applyInput copies set fields onto post and validates them. It returns the
// tag IDs to store, or nil when tags were not sent.
func (s *PostService) applyInput(ctx context.Context, post *models.Post, in PostInput) (*[]uint, error) {
	if in.Title != nil {
		title, err := requireText("title", *in.Title, maxTitleLen)
		if err != nil {
			return nil, err
		}
		post.Title = title
	}
	if in.Slug != nil {
		post.Slug = strings.TrimSpace(*in.Slug)
	}
	if in.Excerpt != nil {
		excerpt, err := optionalText("excerpt", strings.TrimSpace(*in.Excerpt), maxExcerptLen)
		if err != nil {
			return nil, err
		}
		post.Excerpt = excerpt
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, models.NewFieldValidationError("content", "content is required")
		}
		post.Content = *in.Content
	}
	if in.Cover != nil {
		post.Cover = strings.TrimSpace(*in.Cover)
	}
	if in.Status != nil {
		switch *in.Status {
		case models.PostStatusDraft, models.PostStatusPublished:
			post.Status = *in.Status
		default:
			return nil, models.NewFieldValidationError("status", "status must be draft or published")
		}
	}
	if in.IsTop != nil {
		post.IsTop = *in.IsTop
	}
	if in.IsOriginal != nil {
		post.IsOriginal = *in.IsOriginal
	}
	if in.AllowComment != nil {
		post.AllowComment = *in.AllowComment
	}
	if in.IsEncrypted != nil {
		post.IsEncrypted = *in.IsEncrypted
	}
	if in.PublishedAt != nil {
		at := in.PublishedAt.UTC()
		post.PublishedAt = &at
	}
	if err := s.applyCategory(ctx, post, in.CategoryID, in.CategorySet); err != nil {
		return nil, err
	}
	return s.checkTags(ctx, in.TagIDs)
}

func (s *PostService) applyCategory(ctx context.Context, post *models.Post, id *uint, set bool) error {
	if !set {
		return nil
	}
	if id == nil {
		post.CategoryID = nil
		post.Category = nil
		return nil
	}
	if _, err := s.categories.GetByID(ctx, *id); err != nil {
		if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeNotFound {
			return models.NewFieldValidationError("category", "category does not exist")
		}
		return err
	}
	post.CategoryID = id
	post.Category = nil
	return nil
}

func (s *PostService) checkTags(ctx context.Context, ids *[]uint) (*[]uint, error) {
	if ids == nil {
		return nil, nil
	}
	unique := make([]uint, 0, len(*ids))
	seen := make(map[uint]bool, len(*ids))
	for _, id := range *ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) > 0 {
		found, err := s.tags.FindByIDs(ctx, unique)
		if err != nil {
			return nil, err
		}
		if len(found) != len(unique) {
			return nil, models.NewFieldValidationError("tags", "one or more tags do not exist")
		}
	}
	return &unique, nil
}

// beforeSave runs the save hook: slug assignment, password handling,
// markdown rendering and first-publication timestamp.
func (s *PostService) beforeSave(ctx context.Context, post *models.Post, password *string, slugSent bool) error {
	if post.Slug == "" || slugSent {
		base := post.Slug
		if base == "" {
			base = content.Slugify(post.Title, postSlugFallback)
		} else {
			base = content.Slugify(base, postSlugFallback)
		}
		slug, err := uniqueSlug(ctx, base, post.ID, s.posts.SlugExists)
		if err != nil {
			return err
		}
		post.Slug = slug
	}

	if err := applyItemPassword(&post.Password, &post.PasswordUpdatedAt, post.IsEncrypted, password, s.now); err != nil {
		return err
	}

	rendered, err := content.Render(post.Content)
	if err != nil {
		return models.NewInternalError(err)
	}
	post.ContentHTML = rendered.HTML
	post.TOC = tocEntries(rendered.TOC)

	if post.IsPublished() && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
	return nil
}

// applyItemPassword updates a password protected item's hash and moves its
// password timestamp when the effective password changes.
func applyItemPassword(hash *string, updatedAt **time.Time, encrypted bool, input *string, now func() time.Time) error {
	change, err := access.ApplyPassword(*hash, encrypted, input)
	if err != nil {
		return models.NewInternalError(err)
	}
	if encrypted && change.Hash == "" {
		return models.NewFieldValidationError("password", "password is required for protected content")
	}
	if change.Changed {
		ts := now()
		*updatedAt = &ts
	}
	*hash = change.Hash
	return nil
}

func tocEntries(headings []content.Heading) models.JSONList[models.TOCEntry] {
	out := make(models.JSONList[models.TOCEntry], 0, len(headings))
	for _, h := range headings {
		out = append(out, models.TOCEntry{Level: h.Level, ID: h.ID, Title: h.Title})
	}
	return out
}

// ToggleLike flips userID's like on the post.
func (s *PostService) ToggleLike(ctx context.Context, slug string, userID uint) (*LikeResult, error) {
	post, err := s.getVisible(ctx, slug, Viewer{})
	if err != nil {
		return nil, err
	}
	liked, likes, err := s.posts.ToggleLike(ctx, post.ID, userID)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues(models.TargetPost, likeAction(liked)).Inc()
	if liked {
		publishEvent(ctx, s.events, notifications.EventPostLiked, map[string]any{
			"post_id": post.ID, "slug": post.Slug, "user_id": userID, "likes": likes,
		})
	}
	return &LikeResult{Liked: liked, Likes: likes}, nil
}

func likeAction(liked bool) string {
	if liked {
		return "like"
	}
	return "unlike"
}

// VerifyPassword checks a password for a protected post and returns the post
// so the caller can record the unlock.
func (s *PostService) VerifyPassword(ctx context.Context, slug string, viewer Viewer, password string) (*models.Post, error) {
	post, err := s.getVisible(ctx, slug, viewer)
	if err != nil {
		return nil, err
	}
	if err := checkItemPassword(post.IsEncrypted, post.Password, password, "post"); err != nil {
		return nil, err
	}
	return post, nil
}

func checkItemPassword(encrypted bool, hash, password, noun string) error {
	if !encrypted {
		return models.NewValidationError("This " + noun + " is not password protected")
	}
	if strings.TrimSpace(password) == "" {
		return models.NewFieldValidationError("password", "password is required")
	}
	if !access.VerifyPassword(hash, password) {
		return models.NewFieldValidationError("password", "incorrect password")
	}
	return nil
}

// Related lists up to five published posts sharing the category or a tag.
func (s *PostService) Related(ctx context.Context, slug string, viewer Viewer) ([]PostListItem, error) {
	post, err := s.getVisible(ctx, slug, viewer)
	if err != nil {
		return nil, err
	}
	related, err := s.posts.Related(ctx, post, relatedPostsLimit)
	if err != nil {
		return nil, err
	}
	return newPostListItems(related), nil
}

// Archives groups posts by "YYYY-MM" of their display time. Map keys
// marshal in ascending order; each month lists its posts newest first.
func (s *PostService) Archives(ctx context.Context, viewer Viewer) (map[string][]PostListItem, error) {
	posts, err := s.posts.Archive(ctx, !viewer.IsStaff)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]PostListItem)
	for i := range posts {
		key := posts[i].DisplayTime().UTC().Format("2006-01")
		out[key] = append(out[key], newPostListItem(&posts[i]))
	}
	return out, nil
}

// HotScore weighs engagement against age:
// (0.3*views + 0.4*likes + 0.3*comments) / sqrt(days + 1).
func HotScore(views, likes, comments int64, published, now time.Time) float64 {
	days := now.Sub(published).Hours() / 24
	if days < 0 {
		days = 0
	}
	engagement := 0.3*float64(views) + 0.4*float64(likes) + 0.3*float64(comments)
	return engagement / math.Sqrt(days+1)
}

// Hot ranks published, unprotected posts by HotScore. It is computed on
// every call.
func (s *PostService) Hot(ctx context.Context) ([]HotPost, error) {
	posts, err := s.posts.ListPublic(ctx, nil, 0)
	if err != nil {
		return nil, err
	}
	ids := idsOf(posts, func(p models.Post) uint { return p.ID })
	counts, err := s.comments.ApprovedCounts(ctx, models.TargetPost, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ranked := make([]HotPost, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		ranked = append(ranked, HotPost{
			PostListItem: newPostListItem(p),
			HotScore:     HotScore(p.Views, p.Likes, counts[p.ID], p.DisplayTime(), now),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.HotScore != b.HotScore {
			return a.HotScore > b.HotScore
		}
		at, bt := displayTime(a.PostListItem), displayTime(b.PostListItem)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID > b.ID
	})
	if len(ranked) > hotPostsLimit {
		ranked = ranked[:hotPostsLimit]
	}
	return ranked, nil
}

func displayTime(p PostListItem) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// SearchSuggestions returns up to eight post, tag and category matches for q.
func (s *PostService) SearchSuggestions(ctx context.Context, q string) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	out := make([]Suggestion, 0, suggestionsLimit)
	if q == "" {
		return out, nil
	}

	posts, err := s.posts.SuggestTitles(ctx, q, suggestionsLimit)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		out = append(out, Suggestion{Type: suggestionPost, Title: p.Title, Slug: p.Slug})
	}
	if len(out) >= suggestionsLimit {
		return out[:suggestionsLimit], nil
	}

	tags, err := s.tags.SuggestNames(ctx, q, suggestionsLimit-len(out))
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		out = append(out, Suggestion{Type: suggestionTag, Title: t.Name, Slug: t.Slug})
	}
	if len(out) >= suggestionsLimit {
		return out[:suggestionsLimit], nil
	}

	categories, err := s.categories.SuggestNames(ctx, q, suggestionsLimit-len(out))
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		out = append(out, Suggestion{Type: suggestionCategory, Title: c.Name, Slug: c.Slug})
	}
	if len(out) > suggestionsLimit {
		out = out[:suggestionsLimit]
	}
	return out, nil
}

// Autosave stores editor state. An empty slug creates a new draft; otherwise
// the named post is updated without touching its status or publication.
func (s *PostService) Autosave(ctx context.Context, authorID uint, slug string, in DraftInput) (*AutosaveResult, error) {
	var post *models.Post
	if slug == "" {
		post = &models.Post{
			AuthorID:     authorID,
			Title:        defaultDraftTitle,
			Status:       models.PostStatusDraft,
			IsOriginal:   true,
			AllowComment: true,
		}
	} else {
		existing, err := s.posts.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		post = existing
	}

	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			if _, err := optionalText("title", title, maxTitleLen); err != nil {
				return nil, err
			}
			post.Title = title
		}
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.Excerpt != nil {
		excerpt, err := optionalText("excerpt", strings.TrimSpace(*in.Excerpt), maxExcerptLen)
		if err != nil {
			return nil, err
		}
		post.Excerpt = excerpt
	}
	if err := s.applyCategory(ctx, post, in.CategoryID, in.CategorySet); err != nil {
		return nil, err
	}
	tagIDs, err := s.checkTags(ctx, in.TagIDs)
	if err != nil {
		return nil, err
	}

	rendered, err := content.Render(post.Content)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	post.ContentHTML = rendered.HTML
	post.TOC = tocEntries(rendered.TOC)

	if post.ID == 0 {
		base := content.Slugify(post.Title, "draft")
		if post.Slug, err = uniqueSlug(ctx, base, 0, s.posts.SlugExists); err != nil {
			return nil, err
		}
		var ids []uint
		if tagIDs != nil {
			ids = *tagIDs
		}
		if err := s.posts.Create(ctx, post, ids); err != nil {
			return nil, err
		}
	} else if err := s.posts.Update(ctx, post, tagIDs); err != nil {
		return nil, err
	}

	return &AutosaveResult{ID: post.ID, Slug: post.Slug, SavedAt: s.now()}, nil
}

