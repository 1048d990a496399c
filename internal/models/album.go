package models

import "time"

// Album is a photo collection that can be password protected like a post.
type Album struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	Slug              string     `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Description       string     `gorm:"type:text" json:"description"`
	Cover             string     `json:"cover"`
	AuthorID          uint       `gorm:"not null;index" json:"author_id"`
	Author            User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Order             int        `gorm:"column:sort_order;not null;default:0" json:"order"`
	IsEncrypted       bool       `gorm:"not null;default:false" json:"is_encrypted"`
	Password          string     `gorm:"size:128" json:"-"`
	PasswordUpdatedAt *time.Time `json:"-"`
	Photos            []Photo    `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Photo belongs to exactly one album.
type Photo struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200" json:"title"`
	Image       string    `gorm:"not null" json:"image"`
	Thumbnail   string    `json:"thumbnail"`
	Description string    `gorm:"type:text" json:"description"`
	AlbumID     uint      `gorm:"not null;index" json:"album"`
	Album       *Album    `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE" json:"-"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
