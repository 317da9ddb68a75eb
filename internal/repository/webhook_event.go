package repository

import (
	"context"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	Claim(ctx context.Context, eventID, provider, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type webhookEventRepositoryIml struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryIml{db: db}
}

// Claim records the event id before any side effects run. Two deliveries
// racing on the same event both attempt the insert; the conflict no-op means
// exactly one of them sees an affected row and gets to run the handler.
func (r *webhookEventRepositoryIml) Claim(ctx context.Context, eventID, provider, eventType string) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WebhookEvent{
			EventID:     eventID,
			Provider:    provider,
			EventType:   eventType,
			ProcessedAt: time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// Release drops a claim after a failed handler so gateway redelivery gets
// another attempt at the event.
func (r *webhookEventRepositoryIml) Release(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&model.WebhookEvent{}).Error
}
