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

// CommunityStore persists communities, their membership and their messages.
type CommunityStore struct {
	db *gorm.DB
}

func NewCommunityStore(db *gorm.DB) *CommunityStore {
	return &CommunityStore{db: db}
}

func (s *CommunityStore) GetCommunity(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	err := s.db.WithContext(ctx).
		Preload("Members").
		First(&community, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("community not found")
		}
		return nil, errors.Wrap(err, "communityStore.GetCommunity")
	}
	return &community, nil
}

// IsMember answers membership without loading the whole member set.
func (s *CommunityStore) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("community_members").
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "communityStore.IsMember")
	}
	return count > 0, nil
}

func (s *CommunityStore) CreateCommunity(ctx context.Context, community *models.Community) error {
	if err := s.db.WithContext(ctx).Create(community).Error; err != nil {
		return errors.Wrap(err, "communityStore.CreateCommunity")
	}
	return nil
}

func (s *CommunityStore) UpdateCommunity(ctx context.Context, community *models.Community) error {
	if err := s.db.WithContext(ctx).Save(community).Error; err != nil {
		return errors.Wrap(err, "communityStore.UpdateCommunity")
	}
	return nil
}

func (s *CommunityStore) DeleteCommunity(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CommunityMessage{}, "community_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM community_members WHERE community_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Community{}, "id = ?", id).Error
	})
	if err != nil {
		return errors.Wrap(err, "communityStore.DeleteCommunity")
	}
	return nil
}

func (s *CommunityStore) AddMember(ctx context.Context, communityID, userID uint) error {
	joined, err := s.IsMember(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if joined {
		return nil
	}
	err = s.db.WithContext(ctx).
		Exec("INSERT INTO community_members (community_id, user_id) VALUES (?, ?)", communityID, userID).Error
	if err != nil {
		return errors.Wrap(err, "communityStore.AddMember")
	}
	return nil
}

func (s *CommunityStore) RemoveMember(ctx context.Context, communityID, userID uint) error {
	err := s.db.WithContext(ctx).
		Exec("DELETE FROM community_members WHERE community_id = ? AND user_id = ?", communityID, userID).Error
	if err != nil {
		return errors.Wrap(err, "communityStore.RemoveMember")
	}
	return nil
}

func (s *CommunityStore) ListUserCommunities(ctx context.Context, userID uint) ([]models.Community, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Communities").
		First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "communityStore.ListUserCommunities")
	}

	communities := make([]models.Community, 0, len(user.Communities))
	for _, c := range user.Communities {
		communities = append(communities, *c)
	}
	return communities, nil
}

// CommunityHistory returns non-deleted messages newest first.
func (s *CommunityStore) CommunityHistory(ctx context.Context, communityID uint, limit int) ([]models.CommunityMessage, error) {
	var messages []models.CommunityMessage
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND is_deleted = ?", communityID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "communityStore.CommunityHistory")
	}
	return messages, nil
}

func (s *CommunityStore) CreateCommunityMessage(ctx context.Context, message *models.CommunityMessage) error {
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return errors.Wrap(err, "communityStore.CreateCommunityMessage")
	}
	return nil
}

func (s *CommunityStore) GetCommunityMessage(ctx context.Context, messageID, communityID uint) (*models.CommunityMessage, error) {
	var message models.CommunityMessage
	err := s.db.WithContext(ctx).
		Where("id = ? AND community_id = ?", messageID, communityID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, errors.Wrap(err, "communityStore.GetCommunityMessage")
	}
	return &message, nil
}

func (s *CommunityStore) EditCommunityMessage(ctx context.Context, messageID, communityID, senderID uint, newContent string) (*models.CommunityMessage, error) {
	message, err := s.GetCommunityMessage(ctx, messageID, communityID)
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
		return nil, errors.Wrap(err, "communityStore.EditCommunityMessage")
	}
	return message, nil
}

func (s *CommunityStore) SoftDeleteCommunityMessage(ctx context.Context, messageID, communityID, senderID uint) error {
	message, err := s.GetCommunityMessage(ctx, messageID, communityID)
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
		return errors.Wrap(err, "communityStore.SoftDeleteCommunityMessage")
	}
	return nil
}

func (s *CommunityStore) ToggleCommunityLike(ctx context.Context, messageID, communityID, userID uint) (string, int, error) {
	var action string
	var likeCount int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Same locking as the direct-message toggle: serialize per message.
		var message models.CommunityMessage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND community_id = ?", messageID, communityID).
			First(&message).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("message not found")
			}
			return err
		}

		var existing int64
		if err := tx.Table("community_message_likes").
			Where("community_message_id = ? AND user_id = ?", messageID, userID).
			Count(&existing).Error; err != nil {
			return err
		}

		if existing > 0 {
			if err := tx.Exec("DELETE FROM community_message_likes WHERE community_message_id = ? AND user_id = ?", messageID, userID).Error; err != nil {
				return err
			}
			action = "unliked"
		} else {
			if err := tx.Exec("INSERT INTO community_message_likes (community_message_id, user_id) VALUES (?, ?)", messageID, userID).Error; err != nil {
				return err
			}
			action = "liked"
		}

		if err := tx.Table("community_message_likes").
			Where("community_message_id = ?", messageID).
			Count(&likeCount).Error; err != nil {
			return err
		}

		return tx.Model(&models.CommunityMessage{}).
			Where("id = ?", messageID).
			Update("like_count", likeCount).Error
	})
	if err != nil {
		if appErr := apperrors.CodeOf(err); appErr != apperrors.CodeUnknown {
			return "", 0, err
		}
		return "", 0, errors.Wrap(err, "communityStore.ToggleCommunityLike")
	}

	return action, int(likeCount), nil
}

// PurgeDeletedBefore permanently removes soft-deleted community messages
// older than cutoff.
func (s *CommunityStore) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Delete(&models.CommunityMessage{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "communityStore.PurgeDeletedBefore")
	}
	return result.RowsAffected, nil
}
