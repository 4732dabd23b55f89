package models

import (
	"time"
)

// Community is a named group chat. Online members are tracked in the
// websocket hub, not here: presence is connection-scoped and must vanish on
// disconnect, so persisting it would only let it drift.
type Community struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	ImageURL    *string `gorm:"size:512" json:"image_url,omitempty"`
	CreatorID   uint    `gorm:"not null" json:"creator_id"`

	Creator User    `gorm:"foreignKey:CreatorID" json:"-"`
	Members []*User `gorm:"many2many:community_members;" json:"members,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsMember reports whether userID is in the loaded member set.
func (c *Community) IsMember(userID uint) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
