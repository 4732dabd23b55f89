package store

import (
	"context"
	"time"

	"github.com/mindmates/backend/apperrors"
	"github.com/mindmates/backend/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageStore persists direct conversations and their messages.
type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "messageStore.GetUser")
	}
	return &user, nil
}

func (s *MessageStore) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Receiver").
		First(&conversation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, errors.Wrap(err, "messageStore.GetConversation")
	}
	return &conversation, nil
}

// FindConversationBetween looks the pair up in both orderings.
func (s *MessageStore) FindConversationBetween(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Receiver").
		Where("(initiator_id = ? AND receiver_id = ?) OR (initiator_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, errors.Wrap(err, "messageStore.FindConversationBetween")
	}
	return &conversation, nil
}

func (s *MessageStore) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if err := s.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return errors.Wrap(err, "messageStore.CreateConversation")
	}
	return nil
}

func (s *MessageStore) ListUserConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Receiver").
		Where("initiator_id = ? OR receiver_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.ListUserConversations")
	}
	return conversations, nil
}

// ConversationHistory returns non-deleted messages newest first.
func (s *MessageStore) ConversationHistory(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageStore.ConversationHistory")
	}
	return messages, nil
}

func (s *MessageStore) CreateMessage(ctx context.Context, message *models.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("last_message_at", time.Now()).Error
	})
	if err != nil {
		return errors.Wrap(err, "messageStore.CreateMessage")
	}
	return nil
}

// GetMessage fetches a message scoped to its conversation.
func (s *MessageStore) GetMessage(ctx context.Context, messageID, conversationID uint) (*models.Message, error) {
	var message models.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, errors.Wrap(err, "messageStore.GetMessage")
	}
	return &message, nil
}

// MarkRead flips the read flag for an unread message. Returns false when
// nothing changed (already read or no such message).
func (s *MessageStore) MarkRead(ctx context.Context, messageID, conversationID uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND conversation_id = ? AND is_read = ?", messageID, conversationID, false).
		Update("is_read", true)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "messageStore.MarkRead")
	}
	return result.RowsAffected > 0, nil
}

// EditMessage replaces the content of the sender's own, non-deleted message.
func (s *MessageStore) EditMessage(ctx context.Context, messageID, conversationID, senderID uint, newContent string) (*models.Message, error) {
	message, err := s.GetMessage(ctx, messageID, conversationID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != senderID {
		return nil, apperrors.Forbidden("only the sender can edit a message")
	}
	if message.IsDeleted {
		return nil, apperrors.InvalidArg("cannot edit a deleted message")
	}

	message.Content = newContent
	message.IsEdited = true
	if err := s.db.WithContext(ctx).Save(message).Error; err != nil {
		return nil, errors.Wrap(err, "messageStore.EditMessage")
	}
	return message, nil
}

// SoftDeleteMessage hides the sender's message; the row stays for the purge
// job to reap later.
func (s *MessageStore) SoftDeleteMessage(ctx context.Context, messageID, conversationID, senderID uint) error {
	message, err := s.GetMessage(ctx, messageID, conversationID)
	if err != nil {
		return err
	}
	if message.SenderID != senderID {
		return apperrors.Forbidden("only the sender can delete a message")
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(message).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now,
	}).Error
	if err != nil {
		return errors.Wrap(err, "messageStore.SoftDeleteMessage")
	}
	return nil
}

// ToggleLike flips the (user, message) like relation and recomputes the
// denormalized counter in the same transaction.
func (s *MessageStore) ToggleLike(ctx context.Context, messageID, conversationID, userID uint) (string, int, error) {
	var action string
	var likeCount int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes concurrent toggles on the same message
		// so the recomputed counter matches the like set.
		var message models.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND conversation_id = ?", messageID, conversationID).
			First(&message).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("message not found")
			}
			return err
		}

		var existing int64
		if err := tx.Table("message_likes").
			Where("message_id = ? AND user_id = ?", messageID, userID).
			Count(&existing).Error; err != nil {
			return err
		}

		if existing > 0 {
			if err := tx.Exec("DELETE FROM message_likes WHERE message_id = ? AND user_id = ?", messageID, userID).Error; err != nil {
				return err
			}
			action = "unliked"
		} else {
			if err := tx.Exec("INSERT INTO message_likes (message_id, user_id) VALUES (?, ?)", messageID, userID).Error; err != nil {
				return err
			}
			action = "liked"
		}

		if err := tx.Table("message_likes").
			Where("message_id = ?", messageID).
			Count(&likeCount).Error; err != nil {
			return err
		}

		return tx.Model(&models.Message{}).
			Where("id = ?", messageID).
			Update("like_count", likeCount).Error
	})
	if err != nil {
		if appErr := apperrors.CodeOf(err); appErr != apperrors.CodeUnknown {
			return "", 0, err
		}
		return "", 0, errors.Wrap(err, "messageStore.ToggleLike")
	}

	return action, int(likeCount), nil
}

// PurgeDeletedBefore permanently removes soft-deleted messages older than
// cutoff. Used by the retention job only.
func (s *MessageStore) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Delete(&models.Message{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "messageStore.PurgeDeletedBefore")
	}
	return result.RowsAffected, nil
}
