package models

import "time"

// Post status values.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is a blog article written in markdown.
type Post struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	Title             string             `gorm:"size:200;not null" json:"title"`
	Slug              string             `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Excerpt           string             `gorm:"size:500" json:"excerpt"`
	Content           string             `gorm:"type:text;not null" json:"content"`
	ContentHTML       string             `gorm:"type:text" json:"content_html"`
	TOC               JSONList[TOCEntry] `gorm:"type:text" json:"toc"`
	Cover             string             `json:"cover"`
	AuthorID          uint               `gorm:"not null;index" json:"author_id"`
	Author            User               `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	CategoryID        *uint              `gorm:"index" json:"category_id"`
	Category          *Category          `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Tags              []Tag              `gorm:"many2many:post_tags;" json:"tags"`
	Status            string             `gorm:"size:10;not null;default:draft;index" json:"status"`
	IsTop             bool               `gorm:"not null;default:false" json:"is_top"`
	IsOriginal        bool               `gorm:"not null" json:"is_original"`
	AllowComment      bool               `gorm:"not null" json:"allow_comment"`
	IsEncrypted       bool               `gorm:"not null;default:false" json:"is_encrypted"`
	Password          string             `gorm:"size:128" json:"-"`
	PasswordUpdatedAt *time.Time         `json:"-"`
	Views             int64              `gorm:"not null;default:0" json:"views"`
	Likes             int64              `gorm:"not null;default:0" json:"likes"`
	PublishedAt       *time.Time         `gorm:"index" json:"published_at"`
	CreatedAt         time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsPublished reports whether the post is visible to the public.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// DisplayTime is the timestamp used for archives and feeds.
func (p *Post) DisplayTime() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// PostLike records one user's like on a post.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_user" json:"post_id"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_user;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView records a counted view of a post from one client address.
type PostView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index:idx_post_view_ip" json:"post_id"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	IPAddress string    `gorm:"size:64;not null;index:idx_post_view_ip" json:"ip_address"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	ViewedAt  time.Time `gorm:"not null;index:idx_post_view_ip" json:"viewed_at"`
}
