package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByStripeAccountID(ctx context.Context, accountID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetStripeAccountID(ctx context.Context, userID, accountID string) error
	UpdateOnboardingStatus(ctx context.Context, userID string, isOnboarded, payoutsEnabled bool, completedAt *time.Time) error
	MoveBalancePendingToAvailable(ctx context.Context, tx *gorm.DB, userID string, amount float64) error
	AddPendingBalance(ctx context.Context, tx *gorm.DB, userID string, amount float64) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByStripeAccountID(ctx context.Context, accountID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("stripe_account_id = ?", accountID).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepoImpl) SetStripeAccountID(ctx context.Context, userID, accountID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("stripe_account_id", accountID).Error
}

func (r *userRepoImpl) UpdateOnboardingStatus(ctx context.Context, userID string, isOnboarded, payoutsEnabled bool, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"stripe_is_onboarded":    isOnboarded,
		"stripe_payouts_enabled": payoutsEnabled,
		"updated_at":             time.Now(),
	}
	if completedAt != nil {
		updates["stripe_onboarding_completed"] = *completedAt
	}

	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// MoveBalancePendingToAvailable shifts a settled payout amount. The guard on
// balance_pending keeps a replayed event from moving money twice.
func (r *userRepoImpl) MoveBalancePendingToAvailable(ctx context.Context, tx *gorm.DB, userID string, amount float64) error {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Where("balance_pending >= ?", amount).
		Updates(map[string]interface{}{
			"balance_pending":      gorm.Expr("balance_pending - ?", amount),
			"balance_available":    gorm.Expr("balance_available + ?", amount),
			"balance_last_updated": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *userRepoImpl) AddPendingBalance(ctx context.Context, tx *gorm.DB, userID string, amount float64) error {
	return tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"balance_pending":      gorm.Expr("balance_pending + ?", amount),
			"balance_total_earned": gorm.Expr("balance_total_earned + ?", amount),
			"balance_last_updated": time.Now(),
		}).Error
}
