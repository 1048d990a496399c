package models

import "time"

// Comment targets. A comment is attached to exactly one of these.
const (
	TargetPost   = "post"
	TargetMoment = "moment"
	TargetAlbum  = "album"
)

// ValidTarget reports whether kind names a commentable content type.
func ValidTarget(kind string) bool {
	switch kind {
	case TargetPost, TargetMoment, TargetAlbum:
		return true
	}
	return false
}

// MaxCommentLength bounds comment bodies in characters.
const MaxCommentLength = 1000

// Comment is a reader comment on a post, moment or album.
// Replies point at their parent and are deleted with it.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ContentType string    `gorm:"size:20;not null;index:idx_comment_target" json:"content_type"`
	ObjectID    uint      `gorm:"not null;index:idx_comment_target" json:"object_id"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ParentID    *uint     `gorm:"index" json:"parent"`
	Parent      *Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	IsApproved  bool      `gorm:"not null;index" json:"is_approved"`
	IPAddress   string    `gorm:"size:64" json:"-"`
	UserAgent   string    `gorm:"size:500" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommentLike records one user's like on a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_user" json:"comment_id"`
	Comment   Comment   `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like_user" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
