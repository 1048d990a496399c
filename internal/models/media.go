package models

import "time"

// MediaAsset is an uploaded image stored under the media directory.
type MediaAsset struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Hash          string    `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	Path          string    `gorm:"not null" json:"path"`
	ThumbnailPath string    `json:"thumbnail_path"`
	Filename      string    `json:"filename"`
	ContentType   string    `gorm:"size:50" json:"content_type"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	SizeBytes     int64     `json:"size_bytes"`
	UploaderID    uint      `gorm:"index" json:"uploader_id"`
	CreatedAt     time.Time `json:"created_at"`
}
