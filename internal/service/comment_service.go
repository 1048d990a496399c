package service

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/content"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

const latestCommentsLimit = 20

// CommentView is a comment as readers see it. Replies are nested.
type CommentView struct {
	ID          uint               `json:"id"`
	ContentType string             `json:"content_type"`
	ObjectID    uint               `json:"object_id"`
	Author      *models.PublicUser `json:"author"`
	Content     string             `json:"content"`
	Parent      *uint              `json:"parent"`
	IsApproved  bool               `json:"is_approved"`
	LikesCount  int64              `json:"likes_count"`
	IsLiked     bool               `json:"is_liked"`
	Replies     []CommentView      `json:"replies"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// CommentLikeResult is the state after toggling a comment like.
type CommentLikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// CommentInput is a new comment.
type CommentInput struct {
	ContentType string
	ObjectID    uint
	Content     string
	ParentID    *uint
	IP          string
	UserAgent   string
}

// CommentService handles comments on posts, moments and albums.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	moments  repository.MomentRepository
	albums   repository.AlbumRepository
	notifier *NotificationService
	events   EventPublisher
	flags    *featureflags.Manager
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	moments repository.MomentRepository,
	albums repository.AlbumRepository,
	notifier *NotificationService,
	events EventPublisher,
	flags *featureflags.Manager,
) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		moments:  moments,
		albums:   albums,
		notifier: notifier,
		events:   events,
		flags:    flags,
	}
}

// resolveTarget loads the commented item, hiding what viewer may not see.
func (s *CommentService) resolveTarget(ctx context.Context, kind string, id uint, viewer Viewer) (CommentTarget, error) {
	switch kind {
	case models.TargetPost:
		post, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return CommentTarget{}, err
		}
		if !post.IsPublished() && !viewer.IsStaff {
			return CommentTarget{}, models.NewNotFoundError("Post", id)
		}
		return CommentTarget{
			Kind: kind, ID: id, Title: post.Title,
			Path:         "/post/" + post.Slug,
			Author:       &post.Author,
			AllowComment: post.AllowComment,
		}, nil
	case models.TargetMoment:
		m, err := s.moments.GetByID(ctx, id)
		if err != nil {
			return CommentTarget{}, err
		}
		if m.Visibility == models.VisibilityPrivate && !viewer.CanManage(m.AuthorID) {
			return CommentTarget{}, models.NewNotFoundError("Moment", id)
		}
		return CommentTarget{
			Kind: kind, ID: id, Title: content.Truncate(content.PlainText(m.Content), 50),
			Path:         fmt.Sprintf("/moments/%d", m.ID),
			Author:       &m.Author,
			AllowComment: true,
		}, nil
	case models.TargetAlbum:
		a, err := s.albums.GetByID(ctx, id)
		if err != nil {
			return CommentTarget{}, err
		}
		return CommentTarget{
			Kind: kind, ID: id, Title: a.Name,
			Path:         "/photos/" + a.Slug,
			Author:       &a.Author,
			AllowComment: true,
		}, nil
	}
	return CommentTarget{}, models.NewFieldValidationError("content_type", "content_type must be post, moment or album")
}

// List returns the approved comment tree of a target. With no target it
// returns the latest approved comments site-wide; visitors only get those on
// items they could open.
func (s *CommentService) List(ctx context.Context, viewer Viewer, kind string, objectID uint) ([]CommentView, error) {
	if kind == "" && objectID == 0 {
		latest, err := s.comments.ListLatestApproved(ctx, "", !viewer.IsStaff, latestCommentsLimit)
		if err != nil {
			return nil, err
		}
		return s.flatViews(ctx, viewer, latest)
	}
	if _, err := s.resolveTarget(ctx, kind, objectID, viewer); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListApprovedForTarget(ctx, kind, objectID)
	if err != nil {
		return nil, err
	}
	views, err := s.flatViews(ctx, viewer, comments)
	if err != nil {
		return nil, err
	}
	return buildCommentTree(views), nil
}

// buildCommentTree nests replies under their parents. Replies whose parent
// is not in the list are dropped.
func buildCommentTree(flat []CommentView) []CommentView {
	children := make(map[uint][]int)
	var roots []int
	for i := range flat {
		if p := flat[i].Parent; p != nil {
			children[*p] = append(children[*p], i)
		} else {
			roots = append(roots, i)
		}
	}
	var expand func(i int, depth int) CommentView
	expand = func(i int, depth int) CommentView {
		v := flat[i]
		v.Replies = []CommentView{}
		if depth > len(flat) {
			return v
		}
		for _, j := range children[v.ID] {
			v.Replies = append(v.Replies, expand(j, depth+1))
		}
		return v
	}
	out := make([]CommentView, 0, len(roots))
	for _, i := range roots {
		out = append(out, expand(i, 0))
	}
	return out
}

func (s *CommentService) flatViews(ctx context.Context, viewer Viewer, comments []models.Comment) ([]CommentView, error) {
	ids := idsOf(comments, func(c models.Comment) uint { return c.ID })
	counts, err := s.comments.LikeCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	liked, err := s.comments.LikedIDs(ctx, viewer.UserID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, 0, len(comments))
	for i := range comments {
		v := newCommentView(&comments[i])
		v.LikesCount = counts[v.ID]
		v.IsLiked = liked[v.ID]
		out = append(out, v)
	}
	return out, nil
}

func newCommentView(c *models.Comment) CommentView {
	return CommentView{
		ID:          c.ID,
		ContentType: c.ContentType,
		ObjectID:    c.ObjectID,
		Author:      c.Author.Public(),
		Content:     c.Content,
		Parent:      c.ParentID,
		IsApproved:  c.IsApproved,
		Replies:     []CommentView{},
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// Create stores a comment by the viewer and notifies the people involved.
func (s *CommentService) Create(ctx context.Context, viewer Viewer, in CommentInput) (*CommentView, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if !models.ValidTarget(in.ContentType) {
		return nil, models.NewFieldValidationError("content_type", "content_type must be post, moment or album")
	}
	target, err := s.resolveTarget(ctx, in.ContentType, in.ObjectID, viewer)
	if err != nil {
		return nil, err
	}
	if !target.AllowComment {
		return nil, models.NewValidationError("Comments are disabled for this post")
	}
	body, err := validation.CleanComment(in.Content)
	if err != nil {
		return nil, models.NewFieldValidationError("content", err.Error())
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeNotFound {
				return nil, models.NewFieldValidationError("parent", "parent comment does not exist")
			}
			return nil, err
		}
		if parent.ContentType != in.ContentType || parent.ObjectID != in.ObjectID {
			return nil, models.NewFieldValidationError("parent", "parent comment belongs to a different item")
		}
	}

	comment := &models.Comment{
		ContentType: in.ContentType,
		ObjectID:    in.ObjectID,
		AuthorID:    viewer.UserID,
		Content:     body,
		ParentID:    in.ParentID,
		IsApproved:  s.flags == nil || !s.flags.On(featureflags.CommentModeration),
		IPAddress:   in.IP,
		UserAgent:   content.Truncate(in.UserAgent, 500),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	if target.Kind == models.TargetMoment {
		if err := s.moments.AdjustCommentsCount(ctx, target.ID, 1); err != nil {
			return nil, err
		}
	}
	saved, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	observability.CommentsCreated.WithLabelValues(target.Kind).Inc()
	publishEvent(ctx, s.events, notifications.EventCommentCreated, map[string]any{
		"id":           saved.ID,
		"content_type": saved.ContentType,
		"object_id":    saved.ObjectID,
		"author":       saved.Author.Username,
		"approved":     saved.IsApproved,
	})
	if saved.IsApproved {
		s.notifyCreated(ctx, target, saved, parent)
	}

	v := newCommentView(saved)
	return &v, nil
}

// notifyCreated sends the reply mail to the parent's author and the new
// comment mail to the target's author. Nobody gets both for one comment.
func (s *CommentService) notifyCreated(ctx context.Context, target CommentTarget, c, parent *models.Comment) {
	repliedTo := uint(0)
	if parent != nil && s.notifier.CommentReply(ctx, target, c, parent) {
		repliedTo = parent.AuthorID
	}
	if target.Author != nil && target.Author.ID == repliedTo {
		return
	}
	s.notifier.NewComment(ctx, target, c)
}

func (s *CommentService) getManaged(ctx context.Context, viewer Viewer, id uint) (*models.Comment, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanManage(c.AuthorID) {
		return nil, models.NewForbiddenError("You can only modify your own comments")
	}
	return c, nil
}

// Update replaces the text of a comment. Only its author or staff may edit.
func (s *CommentService) Update(ctx context.Context, viewer Viewer, id uint, text string) (*CommentView, error) {
	c, err := s.getManaged(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	body, err := validation.CleanComment(text)
	if err != nil {
		return nil, models.NewFieldValidationError("content", err.Error())
	}
	c.Content = body
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, err
	}
	v := newCommentView(c)
	return &v, nil
}

// Delete removes a comment and its replies.
func (s *CommentService) Delete(ctx context.Context, viewer Viewer, id uint) error {
	c, err := s.getManaged(ctx, viewer, id)
	if err != nil {
		return err
	}
	removed := int64(1)
	if c.ContentType == models.TargetMoment {
		if removed, err = s.comments.CountInThread(ctx, c.ID); err != nil {
			return err
		}
	}
	if err := s.comments.Delete(ctx, c.ID); err != nil {
		return err
	}
	if c.ContentType == models.TargetMoment {
		if err := s.moments.AdjustCommentsCount(ctx, c.ObjectID, -removed); err != nil {
			middleware.Logger.WarnContext(ctx, "adjust moment comment count failed", "moment_id", c.ObjectID, "error", err)
		}
	}
	return nil
}

// ToggleLike flips the viewer's like on an approved comment.
func (s *CommentService) ToggleLike(ctx context.Context, viewer Viewer, id uint) (*CommentLikeResult, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsApproved && !viewer.CanManage(c.AuthorID) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	liked, count, err := s.comments.ToggleLike(ctx, c.ID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues("comment", likeAction(liked)).Inc()
	return &CommentLikeResult{Liked: liked, LikesCount: count}, nil
}

// ListForModeration pages through comments for the admin queue.
func (s *CommentService) ListForModeration(ctx context.Context, approved *bool, limit, offset int) ([]CommentView, int64, error) {
	comments, total, err := s.comments.ListForModeration(ctx, approved, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.flatViews(ctx, Viewer{}, comments)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Moderate approves or rejects a comment and tells its author.
func (s *CommentService) Moderate(ctx context.Context, id uint, approved bool) (*CommentView, error) {
	if err := s.comments.SetApproved(ctx, id, approved); err != nil {
		return nil, err
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveTarget(ctx, c.ContentType, c.ObjectID, Viewer{IsStaff: true})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "comment target missing during moderation", "comment_id", id, "error", err)
	} else {
		s.notifier.CommentApproval(ctx, target, c, approved)
	}
	v := newCommentView(c)
	return &v, nil
}
