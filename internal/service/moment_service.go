package service

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// MomentView is a moment with its author and the viewer's like state.
type MomentView struct {
	ID            uint               `json:"id"`
	Content       string             `json:"content"`
	Images        []string           `json:"images"`
	Location      string             `json:"location"`
	Visibility    string             `json:"visibility"`
	Author        *models.PublicUser `json:"author"`
	Likes         int64              `json:"likes"`
	CommentsCount int64              `json:"comments_count"`
	IsLiked       bool               `json:"is_liked"`
	PublishedAt   time.Time          `json:"published_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// MomentInput carries writable moment fields; nil means unchanged.
type MomentInput struct {
	Content    *string
	Images     *[]string
	Location   *string
	Visibility *string
}

type MomentService struct {
	moments repository.MomentRepository
	events  EventPublisher
	now     func() time.Time
}

func NewMomentService(moments repository.MomentRepository, events EventPublisher) *MomentService {
	return &MomentService{
		moments: moments,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func newMomentView(m *models.Moment, liked bool) MomentView {
	images := []string(m.Images)
	if images == nil {
		images = []string{}
	}
	return MomentView{
		ID:            m.ID,
		Content:       m.Content,
		Images:        images,
		Location:      m.Location,
		Visibility:    m.Visibility,
		Author:        m.Author.Public(),
		Likes:         m.Likes,
		CommentsCount: m.CommentsCount,
		IsLiked:       liked,
		PublishedAt:   m.PublishedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// List pages through public moments plus the viewer's own private ones.
// Staff see everything.
func (s *MomentService) List(ctx context.Context, viewer Viewer, limit, offset int) ([]MomentView, int64, error) {
	moments, total, err := s.moments.List(ctx, viewer.UserID, viewer.IsStaff, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	liked, err := s.moments.LikedIDs(ctx, viewer.UserID, idsOf(moments, func(m models.Moment) uint { return m.ID }))
	if err != nil {
		return nil, 0, err
	}
	out := make([]MomentView, 0, len(moments))
	for i := range moments {
		out = append(out, newMomentView(&moments[i], liked[moments[i].ID]))
	}
	return out, total, nil
}

func (s *MomentService) getVisible(ctx context.Context, viewer Viewer, id uint) (*models.Moment, error) {
	m, err := s.moments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Visibility == models.VisibilityPrivate && !viewer.CanManage(m.AuthorID) {
		return nil, models.NewNotFoundError("Moment", id)
	}
	return m, nil
}

func (s *MomentService) Get(ctx context.Context, viewer Viewer, id uint) (*MomentView, error) {
	m, err := s.getVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	liked, err := s.moments.LikedIDs(ctx, viewer.UserID, []uint{m.ID})
	if err != nil {
		return nil, err
	}
	v := newMomentView(m, liked[m.ID])
	return &v, nil
}

func (s *MomentService) Create(ctx context.Context, viewer Viewer, in MomentInput) (*MomentView, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if in.Content == nil {
		return nil, models.NewFieldValidationError("content", "content is required")
	}
	m := &models.Moment{
		AuthorID:    viewer.UserID,
		Visibility:  models.VisibilityPublic,
		Images:      models.JSONList[string]{},
		PublishedAt: s.now(),
	}
	if err := applyMomentInput(m, in); err != nil {
		return nil, err
	}
	if err := s.moments.Create(ctx, m); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, m.ID)
}

func (s *MomentService) Update(ctx context.Context, viewer Viewer, id uint, in MomentInput) (*MomentView, error) {
	m, err := s.getManaged(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := applyMomentInput(m, in); err != nil {
		return nil, err
	}
	if err := s.moments.Update(ctx, m); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, m.ID)
}

func (s *MomentService) Delete(ctx context.Context, viewer Viewer, id uint) error {
	m, err := s.getManaged(ctx, viewer, id)
	if err != nil {
		return err
	}
	return s.moments.Delete(ctx, m.ID)
}

func (s *MomentService) getManaged(ctx context.Context, viewer Viewer, id uint) (*models.Moment, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	m, err := s.getVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanManage(m.AuthorID) {
		return nil, models.NewForbiddenError("You can only modify your own moments")
	}
	return m, nil
}

// ToggleLike flips the viewer's like on a visible moment.
func (s *MomentService) ToggleLike(ctx context.Context, viewer Viewer, id uint) (*LikeResult, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	m, err := s.getVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	liked, likes, err := s.moments.ToggleLike(ctx, m.ID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues("moment", likeAction(liked)).Inc()
	if liked {
		publishEvent(ctx, s.events, notifications.EventMomentLiked, map[string]any{
			"id": m.ID, "user_id": viewer.UserID, "likes": likes,
		})
	}
	return &LikeResult{Liked: liked, Likes: likes}, nil
}

func applyMomentInput(m *models.Moment, in MomentInput) error {
	if in.Content != nil {
		body := strings.TrimSpace(*in.Content)
		if body == "" {
			return models.NewFieldValidationError("content", "content is required")
		}
		m.Content = body
	}
	if in.Images != nil {
		if len(*in.Images) > models.MaxMomentImages {
			return models.NewFieldValidationError("images", "a moment can have at most 9 images")
		}
		images := make(models.JSONList[string], 0, len(*in.Images))
		for _, img := range *in.Images {
			img = strings.TrimSpace(img)
			if img == "" {
				continue
			}
			if !strings.HasPrefix(img, "/") {
				if err := validation.ValidateURL(img); err != nil {
					return models.NewFieldValidationError("images", err.Error())
				}
			}
			images = append(images, img)
		}
		m.Images = images
	}
	if in.Location != nil {
		loc, err := optionalText("location", strings.TrimSpace(*in.Location), 100)
		if err != nil {
			return err
		}
		m.Location = loc
	}
	if in.Visibility != nil {
		switch *in.Visibility {
		case models.VisibilityPublic, models.VisibilityPrivate:
			m.Visibility = *in.Visibility
		default:
			return models.NewFieldValidationError("visibility", "visibility must be public or private")
		}
	}
	return nil
}
