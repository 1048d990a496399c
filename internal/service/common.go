// Package service holds the blog's business rules. Handlers translate HTTP
// into calls on these services; services talk to repositories.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
)

// Viewer identifies the caller of a service operation. The zero value is an
// anonymous visitor.
type Viewer struct {
	UserID  uint
	IsStaff bool
}

// Authenticated reports whether the viewer is logged in.
func (v Viewer) Authenticated() bool { return v.UserID != 0 }

// CanManage reports whether the viewer may edit content owned by ownerID.
func (v Viewer) CanManage(ownerID uint) bool {
	return v.IsStaff || (v.UserID != 0 && v.UserID == ownerID)
}

// Unlocker reports whether the caller has already unlocked a password
// protected item. Handlers build one from the request session.
type Unlocker func(kind string, id uint, passwordUpdatedAt *time.Time) bool

func (u Unlocker) unlocked(kind string, id uint, ts *time.Time) bool {
	return u != nil && u(kind, id, ts)
}

// EventPublisher fans live events out to admin dashboards.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) error
}

// LikeResult is the state after toggling a like.
type LikeResult struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// publishEvent sends an event when a publisher is configured. Failures are
// logged; live events never fail a request.
func publishEvent(ctx context.Context, p EventPublisher, eventType string, payload any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "publish event failed", "type", eventType, "error", err)
	}
}

// slugExistsFunc checks whether slug is used by a row other than excludeID.
type slugExistsFunc func(ctx context.Context, slug string, excludeID uint) (bool, error)

// uniqueSlug returns base, or base with the first free numeric suffix.
func uniqueSlug(ctx context.Context, base string, excludeID uint, exists slugExistsFunc) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		taken, err := exists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// requireText trims s and enforces 1..max characters.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("%s is required", field))
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}

// optionalText enforces a maximum length on a possibly empty value.
func optionalText(field, s string, max int) (string, error) {
	if utf8.RuneCountInString(s) > max {
		return "", models.NewFieldValidationError(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}

func idsOf[T any](items []T, id func(T) uint) []uint {
	out := make([]uint, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}
