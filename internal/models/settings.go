package models

import "time"

// SiteSettingsID is the primary key of the singleton settings row.
const SiteSettingsID = 1

// SiteSettings holds site-wide presentation and mail configuration.
// Exactly one row exists, with ID SiteSettingsID.
type SiteSettings struct {
	ID                      uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SiteName                string    `gorm:"size:100;not null" json:"site_name"`
	SiteDescription         string    `gorm:"type:text" json:"site_description"`
	SiteKeywords            string    `gorm:"size:200" json:"site_keywords"`
	SiteIcon                string    `json:"site_icon"`
	AboutContent            string    `gorm:"type:text" json:"about_content"`
	AboutContentHTML        string    `gorm:"type:text" json:"about_content_html"`
	EnableEmailNotification bool      `gorm:"not null" json:"enable_email_notification"`
	EmailHost               string    `gorm:"size:100" json:"email_host"`
	EmailPort               int       `gorm:"not null" json:"email_port"`
	EmailUseTLS             bool      `gorm:"column:email_use_tls;not null" json:"email_use_tls"`
	EmailUseSSL             bool      `gorm:"column:email_use_ssl;not null" json:"email_use_ssl"`
	EmailHostUser           string    `gorm:"size:100" json:"email_host_user"`
	EmailHostPassword       string    `gorm:"size:100" json:"-"`
	EmailFrom               string    `gorm:"size:100" json:"email_from"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName returns the database table name for SiteSettings.
func (SiteSettings) TableName() string {
	return "site_settings"
}

// DefaultSiteSettings returns the settings row created on first access.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ID:          SiteSettingsID,
		SiteName:    "My Blog",
		EmailPort:   587,
		EmailUseTLS: true,
	}
}

// NavigationItem is an entry in the site's top navigation.
type NavigationItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:50;not null" json:"name"`
	URL          string    `gorm:"size:200;not null;index" json:"url"`
	IsBuiltin    bool      `gorm:"not null" json:"is_builtin"`
	IsVisible    bool      `gorm:"not null" json:"is_visible"`
	IsAccessible bool      `gorm:"not null" json:"is_accessible"`
	Order        int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BuiltinNavigation lists the navigation entries every site starts with.
func BuiltinNavigation() []NavigationItem {
	entries := []struct {
		name, url string
	}{
		{"Home", "/"},
		{"Moments", "/moments"},
		{"Photos", "/photos"},
		{"Links", "/links"},
		{"Archives", "/archives"},
		{"About", "/about"},
	}
	out := make([]NavigationItem, 0, len(entries))
	for i, e := range entries {
		out = append(out, NavigationItem{
			Name:         e.name,
			URL:          e.url,
			IsBuiltin:    true,
			IsVisible:    true,
			IsAccessible: true,
			Order:        i,
		})
	}
	return out
}
