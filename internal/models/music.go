package models

import "time"

// Music is a track in the site's playlist.
type Music struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Artist      string    `gorm:"size:100" json:"artist"`
	Album       string    `gorm:"size:100" json:"album"`
	AudioFile   string    `gorm:"not null" json:"audio_file"`
	Cover       string    `json:"cover"`
	Lyrics      string    `gorm:"type:text" json:"lyrics"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	Duration    int       `gorm:"not null;default:0" json:"duration"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Music.
func (Music) TableName() string {
	return "music"
}
