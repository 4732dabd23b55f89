package models

import (
	"time"
)

type CommunityMessage struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	CommunityID uint `gorm:"not null;index" json:"community_id"`
	SenderID    uint `gorm:"not null;index" json:"sender_id"`

	Content  string  `gorm:"type:text" json:"content"`
	FileURL  *string `gorm:"size:512" json:"file_url,omitempty"`
	FileName *string `gorm:"size:255" json:"file_name,omitempty"`

	IsEdited  bool       `gorm:"default:false" json:"is_edited"`
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	LikeCount int     `gorm:"default:0" json:"like_count"`
	Likes     []*User `gorm:"many2many:community_message_likes;" json:"-"`

	Sender    User      `gorm:"foreignKey:SenderID" json:"-"`
	Community Community `gorm:"foreignKey:CommunityID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
