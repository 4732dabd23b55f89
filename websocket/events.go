package websocket

import (
	"time"

	"github.com/mindmates/backend/apperrors"
	"github.com/mindmates/backend/models"
)

// Server→client event kinds.
const (
	EventChatMessage    = "chat_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessageLiked   = "message.liked"
	EventMessageRead    = "message_read"
	EventError          = "error"
)

type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// ChatMessageEvent is the envelope for a freshly persisted message. The
// sender receives it through the same room broadcast as everyone else; there
// is no direct synchronous echo.
type ChatMessageEvent struct {
	Type      string    `json:"type"`
	MessageID uint      `json:"message_id"`
	Content   string    `json:"content"`
	FileURL   *string   `json:"file_url,omitempty"`
	Sender    UserRef   `json:"sender"`
	Receiver  *UserRef  `json:"receiver,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
	IsEdited  bool      `json:"is_edited"`
}

type MessageEditedEvent struct {
	Type       string    `json:"type"`
	MessageID  uint      `json:"message_id"`
	NewContent string    `json:"new_content"`
	EditedAt   time.Time `json:"edited_at"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
}

type MessageLikedEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
	UserID    uint   `json:"user_id"`
	Action    string `json:"action"`
	LikeCount int    `json:"like_count"`
}

type MessageReadEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
}

type ErrorEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDirectMessageEvent builds the broadcast envelope for a direct message.
// The REST upload/edit handlers use these constructors too, so both entry
// points produce identical wire events.
func NewDirectMessageEvent(message *models.Message, sender *models.User, receiver *models.User) ChatMessageEvent {
	return ChatMessageEvent{
		Type:      EventChatMessage,
		MessageID: message.ID,
		Content:   message.Content,
		FileURL:   message.FileURL,
		Sender:    UserRef{ID: sender.ID, Username: sender.Username},
		Receiver:  &UserRef{ID: receiver.ID, Username: receiver.Username},
		Timestamp: message.CreatedAt,
		IsRead:    message.IsRead,
		IsEdited:  message.IsEdited,
	}
}

func NewCommunityMessageEvent(message *models.CommunityMessage, sender *models.User) ChatMessageEvent {
	return ChatMessageEvent{
		Type:      EventChatMessage,
		MessageID: message.ID,
		Content:   message.Content,
		FileURL:   message.FileURL,
		Sender:    UserRef{ID: sender.ID, Username: sender.Username},
		Timestamp: message.CreatedAt,
		IsEdited:  message.IsEdited,
	}
}

func NewMessageEditedEvent(messageID uint, newContent string, editedAt time.Time) MessageEditedEvent {
	return MessageEditedEvent{
		Type:       EventMessageEdited,
		MessageID:  messageID,
		NewContent: newContent,
		EditedAt:   editedAt,
	}
}

func NewMessageDeletedEvent(messageID uint) MessageDeletedEvent {
	return MessageDeletedEvent{Type: EventMessageDeleted, MessageID: messageID}
}

func NewMessageLikedEvent(messageID, userID uint, action string, likeCount int) MessageLikedEvent {
	return MessageLikedEvent{
		Type:      EventMessageLiked,
		MessageID: messageID,
		UserID:    userID,
		Action:    action,
		LikeCount: likeCount,
	}
}

func NewMessageReadEvent(messageID uint) MessageReadEvent {
	return MessageReadEvent{Type: EventMessageRead, MessageID: messageID}
}

func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{
		Type:      EventError,
		Message:   err.Error(),
		Status:    apperrors.HTTPStatus(apperrors.CodeOf(err)),
		Timestamp: time.Now(),
	}
}
