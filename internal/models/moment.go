package models

import "time"

// Moment visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// MaxMomentImages caps the images attached to a single moment.
const MaxMomentImages = 9

// Moment is a short status update with optional images.
type Moment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Content       string           `gorm:"type:text;not null" json:"content"`
	Images        JSONList[string] `gorm:"type:text" json:"images"`
	Location      string           `gorm:"size:100" json:"location"`
	Visibility    string           `gorm:"size:10;not null;default:public;index" json:"visibility"`
	AuthorID      uint             `gorm:"not null;index" json:"author_id"`
	Author        User             `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Likes         int64            `gorm:"not null;default:0" json:"likes"`
	CommentsCount int64            `gorm:"not null;default:0" json:"comments_count"`
	PublishedAt   time.Time        `gorm:"index" json:"published_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// MomentLike records one user's like on a moment.
type MomentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MomentID  uint      `gorm:"not null;uniqueIndex:idx_moment_like_user" json:"moment_id"`
	Moment    Moment    `gorm:"foreignKey:MomentID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_moment_like_user" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
