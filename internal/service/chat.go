package service

import (
	"context"
	"errors"
	"time"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	senderUser      = "user"
	senderCharacter = "character"
)

type ChatService interface {
	SendMessage(ctx context.Context, userID, characterID string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*model.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID string) error
}

type chatServiceImpl struct {
	chatRepo      repository.ChatRepository
	characterRepo repository.CharacterRepository
	aiClient      client.AIServiceClient
}

func NewChatService(
	chatRepo repository.ChatRepository,
	characterRepo repository.CharacterRepository,
	aiClient client.AIServiceClient,
) ChatService {
	return &chatServiceImpl{
		chatRepo:      chatRepo,
		characterRepo: characterRepo,
		aiClient:      aiClient,
	}
}

// SendMessage appends the user's message, asks the AI service for the
// character's reply and appends that too. The AI service owns the fallback
// behavior, so a degraded reply still reads as the character.
func (s *chatServiceImpl) SendMessage(ctx context.Context, userID, characterID string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	if req.Content == "" {
		return nil, apperr.Validation("message content is required")
	}

	character, err := s.characterRepo.FindByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("character not found")
		}
		return nil, apperr.Internal("load character", err)
	}
	if !character.Public && character.CreatorID != userID {
		return nil, apperr.Forbidden("character is private")
	}

	chat, err := s.chatRepo.FindOrCreate(ctx, &model.Chat{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
	})
	if err != nil {
		return nil, apperr.Internal("open chat", err)
	}

	reply, err := s.aiClient.Chat(ctx, characterID, req.Content)
	if err != nil {
		return nil, apperr.External("ai service", err)
	}

	now := time.Now()
	userMessage := &model.Message{
		Sender:    senderUser,
		Content:   req.Content,
		Timestamp: now,
	}
	aiMessage := &model.Message{
		Sender:    senderCharacter,
		Content:   reply.Reply,
		Timestamp: now,
	}

	if err := s.chatRepo.AppendMessages(ctx, chat.ID, []*model.Message{userMessage, aiMessage}); err != nil {
		return nil, apperr.Internal("store messages", err)
	}

	return &dto.SendMessageResponse{
		UserMessage: userMessage,
		AIMessage:   aiMessage,
	}, nil
}

func (s *chatServiceImpl) GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("chat not found")
		}
		return nil, apperr.Internal("load chat", err)
	}
	if chat.UserID != userID {
		return nil, apperr.Forbidden("chat belongs to another user")
	}
	return chat, nil
}

func (s *chatServiceImpl) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	chats, err := s.chatRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list chats", err)
	}
	return chats, nil
}

func (s *chatServiceImpl) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("chat not found")
		}
		return apperr.Internal("load chat", err)
	}
	if chat.UserID != userID {
		return apperr.Forbidden("chat belongs to another user")
	}

	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return apperr.Internal("delete chat", err)
	}
	return nil
}
