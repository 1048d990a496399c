// Package models contains data structures for the blog's domain models.
package models

import "time"

// User is an account that can author content or leave comments.
// Staff users are administrators.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email      string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"not null" json:"-"`
	FirstName  string    `gorm:"size:150" json:"first_name"`
	LastName   string    `gorm:"size:150" json:"last_name"`
	Avatar     string    `json:"avatar"`
	Bio        string    `gorm:"size:500" json:"bio"`
	Website    string    `json:"website"`
	IsStaff    bool      `gorm:"not null;default:false" json:"is_staff"`
	DateJoined time.Time `gorm:"autoCreateTime" json:"date_joined"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublicUser is the subset of a user that anyone may see.
type PublicUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio"`
	Website  string `json:"website"`
}

// Public projects u into its public form. A nil user yields nil.
func (u *User) Public() *PublicUser {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		Bio:      u.Bio,
		Website:  u.Website,
	}
}
