package models

import (
	"time"
)

// Message is a direct-chat message. Content may be empty when a file is
// attached; at least one of the two is always present. Deletion is a soft
// flag, the row stays until the purge job removes it.
type Message struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	ConversationID uint `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint `gorm:"not null;index" json:"sender_id"`

	Content  string  `gorm:"type:text" json:"content"`
	FileURL  *string `gorm:"size:512" json:"file_url,omitempty"`
	FileName *string `gorm:"size:255" json:"file_name,omitempty"`

	IsRead    bool       `gorm:"default:false" json:"is_read"`
	IsEdited  bool       `gorm:"default:false" json:"is_edited"`
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	LikeCount int     `gorm:"default:0" json:"like_count"`
	Likes     []*User `gorm:"many2many:message_likes;" json:"-"`

	Sender       User         `gorm:"foreignKey:SenderID" json:"-"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}
