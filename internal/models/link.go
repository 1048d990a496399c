package models

import "time"

// LinkCategory groups friend links.
type LinkCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	Links     []Link    `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"links"`
	CreatedAt time.Time `json:"created_at"`
}

// Link is an external site listed on the links page.
type Link struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:100;not null" json:"name"`
	URL         string        `gorm:"not null" json:"url"`
	Description string        `gorm:"size:200" json:"description"`
	Logo        string        `json:"logo"`
	CategoryID  *uint         `gorm:"index" json:"category"`
	Category    *LinkCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	Order       int           `gorm:"column:sort_order;not null;default:0" json:"order"`
	IsVisible   bool          `gorm:"not null" json:"is_visible"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
