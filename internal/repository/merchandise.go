package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
)

type MerchandiseRepository interface {
	Create(ctx context.Context, merch *model.Merchandise) error
	FindByID(ctx context.Context, id string) (*model.Merchandise, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Merchandise, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Merchandise, error)
	ListApproved(ctx context.Context) ([]*model.Merchandise, error)
	ListByCharacter(ctx context.Context, characterID string) ([]*model.Merchandise, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*model.Merchandise, error)
	Update(ctx context.Context, merch *model.Merchandise) error
	Delete(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, tx *gorm.DB, id string, quantity int) error
	RestoreStock(ctx context.Context, tx *gorm.DB, id string, quantity int) error
}

type merchandiseRepoImpl struct {
	db *gorm.DB
}

func NewMerchandiseRepository(db *gorm.DB) MerchandiseRepository {
	return &merchandiseRepoImpl{
		db: db,
	}
}

func (r *merchandiseRepoImpl) Create(ctx context.Context, merch *model.Merchandise) error {
	return r.db.WithContext(ctx).Create(merch).Error
}

func (r *merchandiseRepoImpl) FindByID(ctx context.Context, id string) (*model.Merchandise, error) {
	var merch model.Merchandise
	err := r.db.WithContext(ctx).
		Preload("PrintfulVariants").
		Where("id = ?", id).
		First(&merch).Error

	if err != nil {
		return nil, err
	}

	return &merch, nil
}

func (r *merchandiseRepoImpl) FindByIDs(ctx context.Context, ids []string) ([]*model.Merchandise, error) {
	var merch []*model.Merchandise
	err := r.db.WithContext(ctx).
		Preload("PrintfulVariants").
		Where("id IN ?", ids).
		Find(&merch).Error

	if err != nil {
		return nil, err
	}

	return merch, nil
}

func (r *merchandiseRepoImpl) FindByExternalID(ctx context.Context, externalID string) (*model.Merchandise, error) {
	var merch model.Merchandise
	err := r.db.WithContext(ctx).
		Where("printful_external_id = ?", externalID).
		First(&merch).Error

	if err != nil {
		return nil, err
	}

	return &merch, nil
}

func (r *merchandiseRepoImpl) ListApproved(ctx context.Context) ([]*model.Merchandise, error) {
	var merch []*model.Merchandise
	err := r.db.WithContext(ctx).
		Where("is_approved = ?", true).
		Order("created_at DESC").
		Find(&merch).Error

	if err != nil {
		return nil, err
	}

	return merch, nil
}

func (r *merchandiseRepoImpl) ListByCharacter(ctx context.Context, characterID string) ([]*model.Merchandise, error) {
	var merch []*model.Merchandise
	err := r.db.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("created_at DESC").
		Find(&merch).Error

	if err != nil {
		return nil, err
	}

	return merch, nil
}

func (r *merchandiseRepoImpl) ListByCreator(ctx context.Context, creatorID string) ([]*model.Merchandise, error) {
	var merch []*model.Merchandise
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&merch).Error

	if err != nil {
		return nil, err
	}

	return merch, nil
}

func (r *merchandiseRepoImpl) Update(ctx context.Context, merch *model.Merchandise) error {
	return r.db.WithContext(ctx).Save(merch).Error
}

func (r *merchandiseRepoImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchandise_id = ?", id).Delete(&model.MerchandiseVariant{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Merchandise{}).Error
	})
}

// DecrementStock reserves stock with a conditional update so two concurrent
// checkouts cannot both take the last unit. Returns gorm.ErrRecordNotFound
// when stock is insufficient.
func (r *merchandiseRepoImpl) DecrementStock(ctx context.Context, tx *gorm.DB, id string, quantity int) error {
	result := tx.WithContext(ctx).Model(&model.Merchandise{}).
		Where("id = ?", id).
		Where("stock >= ?", quantity).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", quantity),
			"sold":       gorm.Expr("sold + ?", quantity),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// RestoreStock is the compensating update for a checkout that failed after
// stock was reserved.
func (r *merchandiseRepoImpl) RestoreStock(ctx context.Context, tx *gorm.DB, id string, quantity int) error {
	return tx.WithContext(ctx).Model(&model.Merchandise{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", quantity),
			"sold":       gorm.Expr("sold - ?", quantity),
			"updated_at": time.Now(),
		}).Error
}
