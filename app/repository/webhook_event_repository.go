package repository

import (
	"errors"
	"time"

	"github.com/resumeforge/ResumeForge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements WebhookEventRepository on GORM.
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates an event store backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event behind the unique index on
// (provider, provider_event_id). ON CONFLICT DO NOTHING keeps the insert
// atomic at the storage layer, so concurrent dispatcher instances cannot
// both observe "new".
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) GetByProviderEventID(provider, providerEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("provider = ? AND provider_event_id = ?", provider, providerEventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) HasBeenProcessed(provider, providerEventID string) (bool, error) {
	event, err := r.GetByProviderEventID(provider, providerEventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return event.IsProcessed(), nil
}

// MarkProcessed stamps processed_at and an optional error outside any ledger
// transaction. Used for event types that cause no balance mutation.
func (r *webhookEventRepository) MarkProcessed(id uint, processingErr error) error {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	now := time.Now()
	res := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": errMsg,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyMarkMiss(r.db, id)
	}
	return nil
}

// RecordProcessingError keeps the event unprocessed but stores why handling
// failed, so a stuck event is diagnosable before the provider redelivers.
func (r *webhookEventRepository) RecordProcessingError(id uint, processingErr error) error {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("processing_error", errMsg).Error
}

// MarkProcessedTx stamps processed_at inside the caller's transaction. The
// `processed_at IS NULL` predicate is the concurrency guard: if it matches
// zero rows, another handler already committed and the caller must roll the
// whole transaction back.
func (r *webhookEventRepository) MarkProcessedTx(tx *gorm.DB, id uint) error {
	now := time.Now()
	res := tx.Model(&models.WebhookEvent{}).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyMarkMiss(tx, id)
	}
	return nil
}

func (r *webhookEventRepository) classifyMarkMiss(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.WebhookEvent{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrEventNotFound
	}
	return ErrEventAlreadyProcessed
}
