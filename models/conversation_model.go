package models

import (
	"time"
)

// Conversation is a direct chat between exactly two distinct users. The
// (initiator, receiver) pair is unique in either ordering; creation checks
// both before inserting.
type Conversation struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	InitiatorID uint `gorm:"not null;index:idx_conversation_pair" json:"initiator_id"`
	ReceiverID  uint `gorm:"not null;index:idx_conversation_pair" json:"receiver_id"`

	Initiator User `gorm:"foreignKey:InitiatorID" json:"initiator"`
	Receiver  User `gorm:"foreignKey:ReceiverID" json:"receiver"`

	Messages []Message `json:"-"`

	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) *User {
	if userID == c.InitiatorID {
		return &c.Receiver
	}
	return &c.Initiator
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uint) bool {
	return userID == c.InitiatorID || userID == c.ReceiverID
}
