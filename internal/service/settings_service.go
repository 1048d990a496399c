package service

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// SettingsService manages site settings and navigation. Public reads go
// through the cache and every write invalidates it.
type SettingsService struct {
	settings   repository.SettingsRepository
	navigation repository.NavigationRepository
	cache      *cache.Store
}

// SettingsInput is a partial update of site settings.
type SettingsInput struct {
	SiteName                *string
	SiteDescription         *string
	SiteKeywords            *string
	SiteIcon                *string
	AboutContent            *string
	EnableEmailNotification *bool
	EmailHost               *string
	EmailPort               *int
	EmailUseTLS             *bool
	EmailUseSSL             *bool
	EmailHostUser           *string
	EmailHostPassword       *string
	EmailFrom               *string
}

// NavigationInput carries writable navigation fields; nil means unchanged.
type NavigationInput struct {
	Name         *string
	URL          *string
	IsVisible    *bool
	IsAccessible *bool
	Order        *int
}

// AccessCheck answers whether a frontend route may be opened.
type AccessCheck struct {
	URL        string `json:"url"`
	Accessible bool   `json:"accessible"`
}

func NewSettingsService(settings repository.SettingsRepository, navigation repository.NavigationRepository, store *cache.Store) *SettingsService {
	return &SettingsService{settings: settings, navigation: navigation, cache: store}
}

// Get returns the public settings, from the cache when possible.
func (s *SettingsService) Get(ctx context.Context) (*models.SiteSettings, error) {
	st, err := cache.Aside(ctx, s.cache, cache.SettingsKey, cache.SettingsTTL, func(ctx context.Context) (models.SiteSettings, error) {
		st, err := s.settings.Get(ctx)
		if err != nil {
			return models.SiteSettings{}, err
		}
		return *st, nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SiteName is a convenience for mail subjects and feed titles.
func (s *SettingsService) SiteName(ctx context.Context) string {
	st, err := s.Get(ctx)
	if err != nil || st.SiteName == "" {
		return models.DefaultSiteSettings().SiteName
	}
	return st.SiteName
}

// Update applies a partial update. A blank SMTP password keeps the stored one.
func (s *SettingsService) Update(ctx context.Context, in SettingsInput) (*models.SiteSettings, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if in.SiteName != nil {
		name, err := requireText("site_name", *in.SiteName, 100)
		if err != nil {
			return nil, err
		}
		st.SiteName = name
	}
	if in.SiteDescription != nil {
		st.SiteDescription = *in.SiteDescription
	}
	if in.SiteKeywords != nil {
		kw, err := optionalText("site_keywords", *in.SiteKeywords, 200)
		if err != nil {
			return nil, err
		}
		st.SiteKeywords = kw
	}
	if in.SiteIcon != nil {
		if err := validation.ValidateOptionalURL(strings.TrimSpace(*in.SiteIcon)); err != nil {
			return nil, models.NewFieldValidationError("site_icon", err.Error())
		}
		st.SiteIcon = strings.TrimSpace(*in.SiteIcon)
	}
	if in.AboutContent != nil {
		st.AboutContent = *in.AboutContent
		rendered, err := content.Render(st.AboutContent)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		st.AboutContentHTML = rendered.HTML
	}
	if in.EnableEmailNotification != nil {
		st.EnableEmailNotification = *in.EnableEmailNotification
	}
	if in.EmailHost != nil {
		st.EmailHost = strings.TrimSpace(*in.EmailHost)
	}
	if in.EmailPort != nil {
		if *in.EmailPort < 1 || *in.EmailPort > 65535 {
			return nil, models.NewFieldValidationError("email_port", "email_port must be between 1 and 65535")
		}
		st.EmailPort = *in.EmailPort
	}
	if in.EmailUseTLS != nil {
		st.EmailUseTLS = *in.EmailUseTLS
	}
	if in.EmailUseSSL != nil {
		st.EmailUseSSL = *in.EmailUseSSL
	}
	if st.EmailUseTLS && st.EmailUseSSL {
		return nil, models.NewFieldValidationError("email_use_ssl", "email_use_tls and email_use_ssl are mutually exclusive")
	}
	if in.EmailHostUser != nil {
		st.EmailHostUser = strings.TrimSpace(*in.EmailHostUser)
	}
	if in.EmailHostPassword != nil && *in.EmailHostPassword != "" {
		st.EmailHostPassword = *in.EmailHostPassword
	}
	if in.EmailFrom != nil {
		from := strings.TrimSpace(*in.EmailFrom)
		if from != "" {
			if err := validation.ValidateEmail(from); err != nil {
				return nil, models.NewFieldValidationError("email_from", err.Error())
			}
		}
		st.EmailFrom = from
	}

	if err := s.settings.Save(ctx, st); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.SettingsKey)
	return st, nil
}

// VisibleNavigation returns the visible menu, creating the built-in items
// the first time the menu is read.
func (s *SettingsService) VisibleNavigation(ctx context.Context) ([]models.NavigationItem, error) {
	return cache.Aside(ctx, s.cache, cache.VisibleNavigationKey, cache.NavigationTTL, func(ctx context.Context) ([]models.NavigationItem, error) {
		n, err := s.navigation.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if _, err := s.navigation.EnsureAll(ctx, models.BuiltinNavigation()); err != nil {
				return nil, err
			}
		}
		items, err := s.navigation.List(ctx, true)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.NavigationItem{}
		}
		return items, nil
	})
}

// AllNavigation lists every item, hidden ones included.
func (s *SettingsService) AllNavigation(ctx context.Context) ([]models.NavigationItem, error) {
	return s.navigation.List(ctx, false)
}

// InitializeNavigation creates any missing built-in items.
func (s *SettingsService) InitializeNavigation(ctx context.Context) (int, error) {
	created, err := s.navigation.EnsureAll(ctx, models.BuiltinNavigation())
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, cache.VisibleNavigationKey)
	return created, nil
}

// NormalizeRoute trims trailing slashes; the empty route is "/".
func NormalizeRoute(raw string) string {
	route := strings.TrimRight(strings.TrimSpace(raw), "/")
	if route == "" {
		return "/"
	}
	return route
}

// CheckAccess reports whether url may be opened. Routes without a menu item
// are accessible.
func (s *SettingsService) CheckAccess(ctx context.Context, url string) (*AccessCheck, error) {
	if strings.TrimSpace(url) == "" {
		return nil, models.NewFieldValidationError("url", "url parameter is required")
	}
	route := NormalizeRoute(url)
	item, err := s.navigation.GetByURL(ctx, route)
	if err != nil {
		return nil, err
	}
	return &AccessCheck{URL: route, Accessible: item == nil || item.IsAccessible}, nil
}

func (s *SettingsService) CreateNavigation(ctx context.Context, in NavigationInput) (*models.NavigationItem, error) {
	if in.Name == nil || in.URL == nil {
		return nil, models.NewValidationError("name and url are required")
	}
	item := &models.NavigationItem{IsVisible: true, IsAccessible: true}
	if err := applyNavigationInput(item, in); err != nil {
		return nil, err
	}
	if err := s.navigation.Create(ctx, item); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.VisibleNavigationKey)
	return item, nil
}

func (s *SettingsService) UpdateNavigation(ctx context.Context, id uint, in NavigationInput) (*models.NavigationItem, error) {
	item, err := s.navigation.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsBuiltin && in.URL != nil && NormalizeRoute(*in.URL) != item.URL {
		return nil, models.NewFieldValidationError("url", "the url of a built-in item cannot change")
	}
	if err := applyNavigationInput(item, in); err != nil {
		return nil, err
	}
	if err := s.navigation.Update(ctx, item); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.VisibleNavigationKey)
	return item, nil
}

// DeleteNavigation removes a custom item. Built-in items cannot be deleted.
func (s *SettingsService) DeleteNavigation(ctx context.Context, id uint) error {
	item, err := s.navigation.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.IsBuiltin {
		return models.NewValidationError("Built-in navigation items cannot be deleted")
	}
	if err := s.navigation.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.VisibleNavigationKey)
	return nil
}

func applyNavigationInput(item *models.NavigationItem, in NavigationInput) error {
	if in.Name != nil {
		name, err := requireText("name", *in.Name, 50)
		if err != nil {
			return err
		}
		item.Name = name
	}
	if in.URL != nil {
		raw := strings.TrimSpace(*in.URL)
		if raw == "" {
			return models.NewFieldValidationError("url", "url is required")
		}
		if !strings.HasPrefix(raw, "/") {
			if err := validation.ValidateURL(raw); err != nil {
				return models.NewFieldValidationError("url", err.Error())
			}
			item.URL = raw
		} else {
			item.URL = NormalizeRoute(raw)
		}
	}
	if in.IsVisible != nil {
		item.IsVisible = *in.IsVisible
	}
	if in.IsAccessible != nil {
		item.IsAccessible = *in.IsAccessible
	}
	if in.Order != nil {
		item.Order = *in.Order
	}
	return nil
}
