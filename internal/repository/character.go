package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CharacterRepository interface {
	Create(ctx context.Context, character *model.Character) error
	FindByID(ctx context.Context, id string) (*model.Character, error)
	ListPublic(ctx context.Context) ([]*model.Character, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*model.Character, error)
	Update(ctx context.Context, character *model.Character) error
	Delete(ctx context.Context, id string) error
	Like(ctx context.Context, characterID, userID string) (bool, error)
	Unlike(ctx context.Context, characterID, userID string) (bool, error)
}

type characterRepoImpl struct {
	db *gorm.DB
}

func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepoImpl{
		db: db,
	}
}

func (r *characterRepoImpl) Create(ctx context.Context, character *model.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *characterRepoImpl) FindByID(ctx context.Context, id string) (*model.Character, error) {
	var character model.Character
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&character).Error

	if err != nil {
		return nil, err
	}

	return &character, nil
}

func (r *characterRepoImpl) ListPublic(ctx context.Context) ([]*model.Character, error) {
	var characters []*model.Character
	err := r.db.WithContext(ctx).
		Where("public = ?", true).
		Order("created_at DESC").
		Find(&characters).Error

	if err != nil {
		return nil, err
	}

	return characters, nil
}

func (r *characterRepoImpl) ListByCreator(ctx context.Context, creatorID string) ([]*model.Character, error) {
	var characters []*model.Character
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&characters).Error

	if err != nil {
		return nil, err
	}

	return characters, nil
}

func (r *characterRepoImpl) Update(ctx context.Context, character *model.Character) error {
	return r.db.WithContext(ctx).Save(character).Error
}

func (r *characterRepoImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Character{}).Error
}

// Like inserts the like row and bumps the counter in one transaction. Returns
// false when the user already liked the character.
func (r *characterRepoImpl) Like(ctx context.Context, characterID, userID string) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.CharacterLike{
				CharacterID: characterID,
				UserID:      userID,
				CreatedAt:   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		liked = true
		return tx.Model(&model.Character{}).
			Where("id = ?", characterID).
			Update("likes", gorm.Expr("likes + 1")).Error
	})

	return liked, err
}

func (r *characterRepoImpl) Unlike(ctx context.Context, characterID, userID string) (bool, error) {
	unliked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("character_id = ? AND user_id = ?", characterID, userID).
			Delete(&model.CharacterLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		unliked = true
		return tx.Model(&model.Character{}).
			Where("id = ? AND likes > 0", characterID).
			Update("likes", gorm.Expr("likes - 1")).Error
	})

	return unliked, err
}
