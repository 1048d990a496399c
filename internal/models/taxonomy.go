package models

import "time"

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#FE9600"

// Category groups posts. Categories may nest.
type Category struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string     `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	Cover       string     `json:"cover"`
	ParentID    *uint      `gorm:"index" json:"parent"`
	Parent      *Category  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Order       int        `gorm:"column:sort_order;not null;default:0" json:"order"`
	PostCount   int64      `gorm:"-" json:"post_count"`
	Children    []Category `gorm:"-" json:"children"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Tag labels posts across categories.
type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"size:200" json:"description"`
	Color       string    `gorm:"size:7;not null;default:'#FE9600'" json:"color"`
	PostCount   int64     `gorm:"-" json:"post_count"`
	CreatedAt   time.Time `json:"created_at"`
}
