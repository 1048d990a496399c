package service

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/access"
	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// AlbumView is an album with its photos. Photos is empty while a password
// protected album is locked for the caller.
type AlbumView struct {
	ID                 uint               `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Description        string             `json:"description"`
	Cover              string             `json:"cover"`
	Author             *models.PublicUser `json:"author"`
	Photos             []models.Photo     `json:"photos"`
	PhotosCount        int64              `json:"photos_count"`
	IsEncrypted        bool               `json:"is_encrypted"`
	IsPasswordVerified bool               `json:"is_password_verified"`
	Order              int                `json:"order"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// AlbumInput carries writable album fields; nil means unchanged.
type AlbumInput struct {
	Name        *string
	Slug        *string
	Description *string
	Cover       *string
	Order       *int
	IsEncrypted *bool
	Password    *string
}

// PhotoInput carries writable photo fields; nil means unchanged.
type PhotoInput struct {
	Title       *string
	Image       *string
	Thumbnail   *string
	Description *string
	Order       *int
}

type AlbumService struct {
	albums repository.AlbumRepository
	now    func() time.Time
}

func NewAlbumService(albums repository.AlbumRepository) *AlbumService {
	return &AlbumService{albums: albums, now: func() time.Time { return time.Now().UTC() }}
}

func (s *AlbumService) unlocked(a *models.Album, viewer Viewer, unlock Unlocker) bool {
	if !a.IsEncrypted || viewer.IsStaff {
		return true
	}
	return unlock.unlocked(access.KindAlbum, a.ID, a.PasswordUpdatedAt)
}

// List returns every album ordered by order then newest, with photos for
// the albums the caller has unlocked.
func (s *AlbumService) List(ctx context.Context, viewer Viewer, unlock Unlocker) ([]AlbumView, error) {
	albums, err := s.albums.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := idsOf(albums, func(a models.Album) uint { return a.ID })
	counts, err := s.albums.PhotoCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	open := make([]uint, 0, len(albums))
	for i := range albums {
		if s.unlocked(&albums[i], viewer, unlock) {
			open = append(open, albums[i].ID)
		}
	}
	photos, err := s.albums.ListPhotos(ctx, open)
	if err != nil {
		return nil, err
	}
	byAlbum := make(map[uint][]models.Photo)
	for _, p := range photos {
		byAlbum[p.AlbumID] = append(byAlbum[p.AlbumID], p)
	}

	out := make([]AlbumView, 0, len(albums))
	for i := range albums {
		a := &albums[i]
		out = append(out, newAlbumView(a, byAlbum[a.ID], counts[a.ID], s.unlocked(a, viewer, unlock)))
	}
	return out, nil
}

func newAlbumView(a *models.Album, photos []models.Photo, count int64, unlocked bool) AlbumView {
	if !unlocked || photos == nil {
		photos = []models.Photo{}
	}
	return AlbumView{
		ID:                 a.ID,
		Name:               a.Name,
		Slug:               a.Slug,
		Description:        a.Description,
		Cover:              a.Cover,
		Author:             a.Author.Public(),
		Photos:             photos,
		PhotosCount:        count,
		IsEncrypted:        a.IsEncrypted,
		IsPasswordVerified: unlocked,
		Order:              a.Order,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (s *AlbumService) Get(ctx context.Context, slug string, viewer Viewer, unlock Unlocker) (*AlbumView, error) {
	a, err := s.albums.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, a, viewer, unlock)
}

func (s *AlbumService) view(ctx context.Context, a *models.Album, viewer Viewer, unlock Unlocker) (*AlbumView, error) {
	counts, err := s.albums.PhotoCounts(ctx, []uint{a.ID})
	if err != nil {
		return nil, err
	}
	open := s.unlocked(a, viewer, unlock)
	var photos []models.Photo
	if open {
		if photos, err = s.albums.ListPhotos(ctx, []uint{a.ID}); err != nil {
			return nil, err
		}
	}
	v := newAlbumView(a, photos, counts[a.ID], open)
	return &v, nil
}

func (s *AlbumService) Create(ctx context.Context, authorID uint, in AlbumInput) (*AlbumView, error) {
	if in.Name == nil {
		return nil, models.NewFieldValidationError("name", "name is required")
	}
	a := &models.Album{AuthorID: authorID}
	if err := s.apply(ctx, a, in); err != nil {
		return nil, err
	}
	if err := s.albums.Create(ctx, a); err != nil {
		return nil, err
	}
	return s.reload(ctx, a.ID)
}

func (s *AlbumService) Update(ctx context.Context, slug string, in AlbumInput) (*AlbumView, error) {
	a, err := s.albums.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, a, in); err != nil {
		return nil, err
	}
	if err := s.albums.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.reload(ctx, a.ID)
}

func (s *AlbumService) reload(ctx context.Context, id uint) (*AlbumView, error) {
	a, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, a, Viewer{IsStaff: true}, nil)
}

func (s *AlbumService) Delete(ctx context.Context, slug string) error {
	a, err := s.albums.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.albums.Delete(ctx, a.ID)
}

func (s *AlbumService) apply(ctx context.Context, a *models.Album, in AlbumInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 100)
		if err != nil {
			return err
		}
		a.Name = name
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Cover != nil {
		a.Cover = strings.TrimSpace(*in.Cover)
	}
	if in.Order != nil {
		a.Order = *in.Order
	}
	if in.IsEncrypted != nil {
		a.IsEncrypted = *in.IsEncrypted
	}
	if in.Slug != nil || a.Slug == "" {
		source := a.Name
		if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
			source = *in.Slug
		}
		slug, err := uniqueSlug(ctx, content.Slugify(source, "album"), a.ID, s.albums.SlugExists)
		if err != nil {
			return err
		}
		a.Slug = slug
	}
	return applyItemPassword(&a.Password, &a.PasswordUpdatedAt, a.IsEncrypted, in.Password, s.now)
}

// VerifyPassword checks the password of a protected album and returns it so
// the caller can record the unlock.
func (s *AlbumService) VerifyPassword(ctx context.Context, slug, password string) (*models.Album, error) {
	a, err := s.albums.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := checkItemPassword(a.IsEncrypted, a.Password, password, "album"); err != nil {
		return nil, err
	}
	return a, nil
}

// ListPhotos returns the photos of one album, or of every unlocked album
// when albumSlug is empty.
func (s *AlbumService) ListPhotos(ctx context.Context, albumSlug string, viewer Viewer, unlock Unlocker) ([]models.Photo, error) {
	if albumSlug != "" {
		a, err := s.albums.GetBySlug(ctx, albumSlug)
		if err != nil {
			return nil, err
		}
		if !s.unlocked(a, viewer, unlock) {
			return []models.Photo{}, nil
		}
		return s.albums.ListPhotos(ctx, []uint{a.ID})
	}
	albums, err := s.albums.List(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]uint, 0, len(albums))
	for i := range albums {
		if s.unlocked(&albums[i], viewer, unlock) {
			open = append(open, albums[i].ID)
		}
	}
	return s.albums.ListPhotos(ctx, open)
}

// GetPhoto returns a photo if its album is unlocked for the caller. A locked
// album answers 403 so clients can prompt for the password.
func (s *AlbumService) GetPhoto(ctx context.Context, id uint, viewer Viewer, unlock Unlocker) (*models.Photo, error) {
	p, err := s.albums.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Album != nil && !s.unlocked(p.Album, viewer, unlock) {
		return nil, models.NewForbiddenError("This album is password protected")
	}
	return p, nil
}

func (s *AlbumService) AddPhoto(ctx context.Context, albumSlug string, in PhotoInput) (*models.Photo, error) {
	a, err := s.albums.GetBySlug(ctx, albumSlug)
	if err != nil {
		return nil, err
	}
	if in.Image == nil || strings.TrimSpace(*in.Image) == "" {
		return nil, models.NewFieldValidationError("image", "image is required")
	}
	p := &models.Photo{AlbumID: a.ID}
	if err := applyPhotoInput(p, in); err != nil {
		return nil, err
	}
	if err := s.albums.CreatePhoto(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *AlbumService) UpdatePhoto(ctx context.Context, id uint, in PhotoInput) (*models.Photo, error) {
	p, err := s.albums.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPhotoInput(p, in); err != nil {
		return nil, err
	}
	if err := s.albums.UpdatePhoto(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *AlbumService) DeletePhoto(ctx context.Context, id uint) error {
	return s.albums.DeletePhoto(ctx, id)
}

func applyPhotoInput(p *models.Photo, in PhotoInput) error {
	if in.Title != nil {
		title, err := optionalText("title", strings.TrimSpace(*in.Title), 200)
		if err != nil {
			return err
		}
		p.Title = title
	}
	if in.Image != nil {
		img := strings.TrimSpace(*in.Image)
		if img == "" {
			return models.NewFieldValidationError("image", "image is required")
		}
		p.Image = img
	}
	if in.Thumbnail != nil {
		p.Thumbnail = strings.TrimSpace(*in.Thumbnail)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Order != nil {
		p.Order = *in.Order
	}
	return nil
}
