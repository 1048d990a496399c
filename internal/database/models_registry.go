package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.PostLike{},
		&models.PostView{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Moment{},
		&models.MomentLike{},
		&models.Album{},
		&models.Photo{},
		&models.Music{},
		&models.LinkCategory{},
		&models.Link{},
		&models.SiteSettings{},
		&models.NavigationItem{},
		&models.EmailLog{},
		&models.MediaAsset{},
	}
}
