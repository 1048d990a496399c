package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// MusicInput carries writable track fields; nil means unchanged.
type MusicInput struct {
	Title       *string
	Artist      *string
	Album       *string
	AudioFile   *string
	Cover       *string
	Lyrics      *string
	Order       *int
	IsPublished *bool
	Duration    *int
}

// MusicService manages the playlist.
type MusicService struct {
	tracks repository.MusicRepository
}

func NewMusicService(tracks repository.MusicRepository) *MusicService {
	return &MusicService{tracks: tracks}
}

// List returns the whole playlist; unpublished tracks only for staff.
func (s *MusicService) List(ctx context.Context, viewer Viewer) ([]models.Music, error) {
	tracks, err := s.tracks.List(ctx, !viewer.IsStaff)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []models.Music{}
	}
	return tracks, nil
}

func (s *MusicService) Get(ctx context.Context, viewer Viewer, id uint) (*models.Music, error) {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !track.IsPublished && !viewer.IsStaff {
		return nil, models.NewNotFoundError("Music", id)
	}
	return track, nil
}

func (s *MusicService) Create(ctx context.Context, authorID uint, in MusicInput) (*models.Music, error) {
	if in.Title == nil || in.AudioFile == nil {
		return nil, models.NewValidationError("title and audio_file are required")
	}
	track := &models.Music{AuthorID: authorID, IsPublished: true}
	if err := applyMusicInput(track, in); err != nil {
		return nil, err
	}
	if err := s.tracks.Create(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

func (s *MusicService) Update(ctx context.Context, id uint, in MusicInput) (*models.Music, error) {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyMusicInput(track, in); err != nil {
		return nil, err
	}
	if err := s.tracks.Update(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

func (s *MusicService) Delete(ctx context.Context, id uint) error {
	return s.tracks.Delete(ctx, id)
}

func applyMusicInput(t *models.Music, in MusicInput) error {
	if in.Title != nil {
		title, err := requireText("title", *in.Title, 200)
		if err != nil {
			return err
		}
		t.Title = title
	}
	if in.Artist != nil {
		artist, err := optionalText("artist", strings.TrimSpace(*in.Artist), 100)
		if err != nil {
			return err
		}
		t.Artist = artist
	}
	if in.Album != nil {
		album, err := optionalText("album", strings.TrimSpace(*in.Album), 100)
		if err != nil {
			return err
		}
		t.Album = album
	}
	if in.AudioFile != nil {
		file, err := requireText("audio_file", *in.AudioFile, 0)
		if err != nil {
			return err
		}
		t.AudioFile = file
	}
	if in.Cover != nil {
		t.Cover = strings.TrimSpace(*in.Cover)
	}
	if in.Lyrics != nil {
		t.Lyrics = *in.Lyrics
	}
	if in.Order != nil {
		t.Order = *in.Order
	}
	if in.IsPublished != nil {
		t.IsPublished = *in.IsPublished
	}
	if in.Duration != nil {
		if *in.Duration < 0 {
			return models.NewFieldValidationError("duration", "duration cannot be negative")
		}
		t.Duration = *in.Duration
	}
	return nil
}
