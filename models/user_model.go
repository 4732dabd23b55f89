package models

import (
	"time"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email    string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password string `gorm:"not null" json:"-"`

	ProfilePictureURL *string `gorm:"size:255" json:"profile_picture_url"`
	Bio               *string `gorm:"type:text" json:"bio"`

	Communities []*Community `gorm:"many2many:community_members;" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
