package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
)

type ChatRepository interface {
	FindOrCreate(ctx context.Context, chat *model.Chat) (*model.Chat, error)
	FindByID(ctx context.Context, id string) (*model.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Chat, error)
	AppendMessages(ctx context.Context, chatID string, messages []*model.Message) error
	Delete(ctx context.Context, id string) error
}

type chatRepoImpl struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepoImpl{
		db: db,
	}
}

// FindOrCreate returns the existing chat between the user and character or
// creates a fresh one. The unique index on (user_id, character_id) keeps
// concurrent first messages from forking the conversation.
func (r *chatRepoImpl) FindOrCreate(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	var existing model.Chat
	err := r.db.WithContext(ctx).
		Preload("Messages").
		Where("user_id = ? AND character_id = ?", chat.UserID, chat.CharacterID).
		First(&existing).Error

	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, err
	}

	return chat, nil
}

func (r *chatRepoImpl) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.timestamp ASC")
		}).
		Where("id = ?", id).
		First(&chat).Error

	if err != nil {
		return nil, err
	}

	return &chat, nil
}

func (r *chatRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Chat, error) {
	var chats []*model.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Find(&chats).Error

	if err != nil {
		return nil, err
	}

	return chats, nil
}

func (r *chatRepoImpl) AppendMessages(ctx context.Context, chatID string, messages []*model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range messages {
			m.ChatID = chatID
		}
		if err := tx.Create(&messages).Error; err != nil {
			return err
		}

		return tx.Model(&model.Chat{}).
			Where("id = ?", chatID).
			Update("last_message_at", time.Now()).Error
	})
}

func (r *chatRepoImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Chat{}).Error
	})
}
