package service

import (
	"context"
	"errors"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CharacterService interface {
	Create(ctx context.Context, creatorID string, req *dto.CreateCharacterRequest) (*model.Character, error)
	Get(ctx context.Context, userID, characterID string) (*model.Character, error)
	ListPublic(ctx context.Context) ([]*model.Character, error)
	ListMine(ctx context.Context, creatorID string) ([]*model.Character, error)
	Update(ctx context.Context, userID, characterID string, req *dto.UpdateCharacterRequest) (*model.Character, error)
	Delete(ctx context.Context, userID, characterID string) error
	Like(ctx context.Context, userID, characterID string) error
	Unlike(ctx context.Context, userID, characterID string) error
	GenerateImage(ctx context.Context, req *dto.GenerateCharacterImageRequest) (*dto.GenerateCharacterImageResponse, error)
}

type characterServiceImpl struct {
	characterRepo repository.CharacterRepository
	aiClient      client.AIServiceClient
	imageHost     client.ImageHost
}

func NewCharacterService(
	characterRepo repository.CharacterRepository,
	aiClient client.AIServiceClient,
	imageHost client.ImageHost,
) CharacterService {
	return &characterServiceImpl{
		characterRepo: characterRepo,
		aiClient:      aiClient,
		imageHost:     imageHost,
	}
}

func (s *characterServiceImpl) Create(ctx context.Context, creatorID string, req *dto.CreateCharacterRequest) (*model.Character, error) {
	if req.Name == "" {
		return nil, apperr.Validation("character name is required")
	}
	if req.GreedFactor < 0 || req.GreedFactor > 5 {
		return nil, apperr.Validation("greed factor must be between 0 and 5")
	}

	character := &model.Character{
		ID:          uuid.NewString(),
		Name:        req.Name,
		CreatorID:   creatorID,
		ImageURL:    req.ImageURL,
		Description: req.Description,
		Personality: req.Personality,
		Background:  req.Backstory,
		Interests:   req.Interests,
		Occupation:  req.Occupation,
		Age:         req.Age,
		GreedFactor: req.GreedFactor,
		Public:      req.Public,
	}
	if req.ArtStyle != "" {
		character.Style = req.ArtStyle
	}

	if err := s.characterRepo.Create(ctx, character); err != nil {
		return nil, apperr.Internal("store character", err)
	}

	return character, nil
}

func (s *characterServiceImpl) Get(ctx context.Context, userID, characterID string) (*model.Character, error) {
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

	return character, nil
}

func (s *characterServiceImpl) ListPublic(ctx context.Context) ([]*model.Character, error) {
	characters, err := s.characterRepo.ListPublic(ctx)
	if err != nil {
		return nil, apperr.Internal("list characters", err)
	}
	return characters, nil
}

func (s *characterServiceImpl) ListMine(ctx context.Context, creatorID string) ([]*model.Character, error) {
	characters, err := s.characterRepo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Internal("list characters", err)
	}
	return characters, nil
}

func (s *characterServiceImpl) Update(ctx context.Context, userID, characterID string, req *dto.UpdateCharacterRequest) (*model.Character, error) {
	character, err := s.characterRepo.FindByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("character not found")
		}
		return nil, apperr.Internal("load character", err)
	}
	if character.CreatorID != userID {
		return nil, apperr.Forbidden("only the creator can edit a character")
	}

	if req.Name != nil {
		character.Name = *req.Name
	}
	if req.Description != nil {
		character.Description = *req.Description
	}
	if req.Personality != nil {
		character.Personality = *req.Personality
	}
	if req.Backstory != nil {
		character.Background = *req.Backstory
	}
	if req.Interests != nil {
		character.Interests = *req.Interests
	}
	if req.Occupation != nil {
		character.Occupation = *req.Occupation
	}
	if req.Age != nil {
		character.Age = *req.Age
	}
	if req.ImageURL != nil {
		character.ImageURL = *req.ImageURL
	}
	if req.ArtStyle != nil {
		character.Style = *req.ArtStyle
	}
	if req.GreedFactor != nil {
		if *req.GreedFactor < 0 || *req.GreedFactor > 5 {
			return nil, apperr.Validation("greed factor must be between 0 and 5")
		}
		character.GreedFactor = *req.GreedFactor
	}
	if req.Public != nil {
		character.Public = *req.Public
	}

	if err := s.characterRepo.Update(ctx, character); err != nil {
		return nil, apperr.Internal("update character", err)
	}

	return character, nil
}

func (s *characterServiceImpl) Delete(ctx context.Context, userID, characterID string) error {
	character, err := s.characterRepo.FindByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("character not found")
		}
		return apperr.Internal("load character", err)
	}
	if character.CreatorID != userID {
		return apperr.Forbidden("only the creator can delete a character")
	}

	if err := s.characterRepo.Delete(ctx, characterID); err != nil {
		return apperr.Internal("delete character", err)
	}
	return nil
}

func (s *characterServiceImpl) Like(ctx context.Context, userID, characterID string) error {
	if _, err := s.characterRepo.FindByID(ctx, characterID); err != nil {
		return apperr.NotFound("character not found")
	}
	if _, err := s.characterRepo.Like(ctx, characterID, userID); err != nil {
		return apperr.Internal("like character", err)
	}
	return nil
}

func (s *characterServiceImpl) Unlike(ctx context.Context, userID, characterID string) error {
	if _, err := s.characterRepo.FindByID(ctx, characterID); err != nil {
		return apperr.NotFound("character not found")
	}
	if _, err := s.characterRepo.Unlike(ctx, characterID, userID); err != nil {
		return apperr.Internal("unlike character", err)
	}
	return nil
}

// GenerateImage asks the AI service for artwork, then re-hosts the result.
// Generated URLs are short-lived, so the hosted copy is what gets stored.
// A fallback image from the AI service is returned as-is.
func (s *characterServiceImpl) GenerateImage(ctx context.Context, req *dto.GenerateCharacterImageRequest) (*dto.GenerateCharacterImageResponse, error) {
	if req.Prompt == "" {
		return nil, apperr.Validation("prompt is required")
	}

	generated, err := s.aiClient.GenerateImage(ctx, req.Prompt, req.ArtStyle)
	if err != nil {
		return nil, apperr.External("ai service", err)
	}
	if generated.Fallback {
		return &dto.GenerateCharacterImageResponse{ImageURL: generated.ImageURL}, nil
	}

	imageID, err := s.imageHost.UploadFromURL(ctx, generated.ImageURL, map[string]string{
		"artStyle": req.ArtStyle,
	})
	if err != nil {
		// Hosting is cosmetic; the short-lived URL still works for a while.
		return &dto.GenerateCharacterImageResponse{ImageURL: generated.ImageURL}, nil
	}

	return &dto.GenerateCharacterImageResponse{ImageURL: s.imageHost.DeliveryURL(imageID)}, nil
}
