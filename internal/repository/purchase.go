package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
)

type PurchaseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error
	FindByID(ctx context.Context, id string) (*model.Purchase, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*model.Purchase, error)
	FindByPrintfulOrderID(ctx context.Context, printfulOrderID string) (*model.Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error)
	ListPaidUnlinked(ctx context.Context) ([]*model.Purchase, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id, from, to string) (bool, error)
	SetPrintfulOrder(ctx context.Context, tx *gorm.DB, id, printfulOrderID, status string) error
	ClaimFulfillment(ctx context.Context, id string) (bool, error)
	ReleaseFulfillment(ctx context.Context, id string) error
	UpdatePrintfulStatus(ctx context.Context, id, status string) error
	MarkShipped(ctx context.Context, id, trackingNumber, trackingURL string) error
	UpdateStatus(ctx context.Context, id, status string) error

	CreatePayouts(ctx context.Context, tx *gorm.DB, payouts []*model.CreatorPayout) error
	FindPayoutByTransferID(ctx context.Context, transferID string) (*model.CreatorPayout, error)
	ListUnsettledPayouts(ctx context.Context, creatorID string) ([]*model.CreatorPayout, error)
	AttachTransferID(ctx context.Context, payoutID uint, transferID string) error
	MarkPayoutPaid(ctx context.Context, tx *gorm.DB, payoutID uint) (bool, error)
}

type purchaseRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepoImpl{
		db: db,
	}
}

func (r *purchaseRepoImpl) Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error {
	return tx.WithContext(ctx).Create(purchase).Error
}

func (r *purchaseRepoImpl) FindByID(ctx context.Context, id string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("CreatorPayouts").
		Where("id = ?", id).
		First(&purchase).Error

	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *purchaseRepoImpl) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("CreatorPayouts").
		Where("stripe_payment_intent = ?", paymentIntentID).
		First(&purchase).Error

	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *purchaseRepoImpl) FindByPrintfulOrderID(ctx context.Context, printfulOrderID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("printful_order_id = ?", printfulOrderID).
		First(&purchase).Error

	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *purchaseRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error) {
	var purchases []*model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error

	if err != nil {
		return nil, err
	}

	return purchases, nil
}

// ListPaidUnlinked returns paid purchases with no fulfillment order attached,
// used to correlate fulfillment webhooks that arrive without an external ID.
func (r *purchaseRepoImpl) ListPaidUnlinked(ctx context.Context) ([]*model.Purchase, error) {
	var purchases []*model.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("is_paid = ?", true).
		Where("printful_order_id = ?", "").
		Order("paid_at DESC").
		Find(&purchases).Error

	if err != nil {
		return nil, err
	}

	return purchases, nil
}

// MarkPaid flips the purchase to paid only if it was not already. The second
// return reports whether this call made the transition; a replayed payment
// event gets false and must not trigger side effects again.
func (r *purchaseRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Where("is_paid = ?", false).
		Updates(map[string]interface{}{
			"is_paid":    true,
			"paid_at":    now,
			"status":     model.PurchaseStatusProcessing,
			"updated_at": now,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// TransitionStatus moves the purchase between statuses only when it currently
// holds the expected one. Returns whether this call made the transition.
func (r *purchaseRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, id, from, to string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Where("status = ?", from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *purchaseRepoImpl) SetPrintfulOrder(ctx context.Context, tx *gorm.DB, id, printfulOrderID, status string) error {
	return tx.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"printful_order_id":     printfulOrderID,
			"printful_order_status": status,
			"updated_at":            time.Now(),
		}).Error
}

// printfulStatusSubmitting marks an in-flight order submission. It never comes
// from the gateway; it exists so concurrent submitters can race on a
// conditional update instead of both calling the gateway.
const printfulStatusSubmitting = "submitting"

// ClaimFulfillment marks the purchase as having an order submission in
// flight. Returns whether this call won the claim; losers must not create a
// gateway order.
func (r *purchaseRepoImpl) ClaimFulfillment(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Where("printful_order_id = ?", "").
		Where("printful_order_status <> ?", printfulStatusSubmitting).
		Update("printful_order_status", printfulStatusSubmitting)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ReleaseFulfillment undoes a claim after a failed submission so a later
// attempt can resubmit.
func (r *purchaseRepoImpl) ReleaseFulfillment(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Where("printful_order_status = ?", printfulStatusSubmitting).
		Update("printful_order_status", "").Error
}

func (r *purchaseRepoImpl) UpdatePrintfulStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"printful_order_status": status,
			"updated_at":            time.Now(),
		}).Error
}

func (r *purchaseRepoImpl) MarkShipped(ctx context.Context, id, trackingNumber, trackingURL string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_shipped":      true,
			"shipped_at":      now,
			"tracking_number": trackingNumber,
			"tracking_url":    trackingURL,
			"status":          model.PurchaseStatusShipped,
			"updated_at":      now,
		}).Error
}

func (r *purchaseRepoImpl) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *purchaseRepoImpl) CreatePayouts(ctx context.Context, tx *gorm.DB, payouts []*model.CreatorPayout) error {
	return tx.WithContext(ctx).Create(&payouts).Error
}

func (r *purchaseRepoImpl) FindPayoutByTransferID(ctx context.Context, transferID string) (*model.CreatorPayout, error) {
	var payout model.CreatorPayout
	err := r.db.WithContext(ctx).
		Where("stripe_transfer_id = ?", transferID).
		First(&payout).Error

	if err != nil {
		return nil, err
	}

	return &payout, nil
}

// ListUnsettledPayouts returns the creator's payout rows still waiting for a
// gateway transfer on purchases that are already paid, used to retry
// transfers deferred while the creator's account could not receive them.
func (r *purchaseRepoImpl) ListUnsettledPayouts(ctx context.Context, creatorID string) ([]*model.CreatorPayout, error) {
	var payouts []*model.CreatorPayout
	err := r.db.WithContext(ctx).
		Joins("JOIN purchases ON purchases.id = creator_payouts.purchase_id").
		Where("creator_payouts.creator_id = ?", creatorID).
		Where("creator_payouts.status = ?", model.PayoutStatusPending).
		Where("creator_payouts.stripe_transfer_id = ?", "").
		Where("purchases.is_paid = ?", true).
		Find(&payouts).Error

	if err != nil {
		return nil, err
	}

	return payouts, nil
}

func (r *purchaseRepoImpl) AttachTransferID(ctx context.Context, payoutID uint, transferID string) error {
	return r.db.WithContext(ctx).Model(&model.CreatorPayout{}).
		Where("id = ?", payoutID).
		Update("stripe_transfer_id", transferID).Error
}

// MarkPayoutPaid settles a payout only if it is still pending. Returns whether
// this call made the transition.
func (r *purchaseRepoImpl) MarkPayoutPaid(ctx context.Context, tx *gorm.DB, payoutID uint) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.CreatorPayout{}).
		Where("id = ?", payoutID).
		Where("status = ?", model.PayoutStatusPending).
		Updates(map[string]interface{}{
			"status":  model.PayoutStatusPaid,
			"paid_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
