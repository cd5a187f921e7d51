package repository

import (
	"time"

	"github.com/resumeforge/ResumeForge/app/models"
	"gorm.io/gorm"
)

// optimizationRepository implements the OptimizationRepository interface
type optimizationRepository struct {
	db *gorm.DB
}

// NewOptimizationRepository creates a new optimization repository instance
func NewOptimizationRepository(db *gorm.DB) OptimizationRepository {
	return &optimizationRepository{db: db}
}

func (r *optimizationRepository) Create(opt *models.Optimization) error {
	return r.db.Create(opt).Error
}

func (r *optimizationRepository) GetByUUID(uuid string) (*models.Optimization, error) {
	var opt models.Optimization
	err := r.db.Where("uuid = ?", uuid).First(&opt).Error
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

// UpdateStatus transitions the job state and stamps started/finished times.
func (r *optimizationRepository) UpdateStatus(uuid string, status string, errorReason string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"error_reason": errorReason,
	}
	switch status {
	case models.OptimizationStatusProcessing:
		updates["started_at"] = &now
	case models.OptimizationStatusCompleted, models.OptimizationStatusFailed:
		updates["finished_at"] = &now
	}
	return r.db.Model(&models.Optimization{}).Where("uuid = ?", uuid).Updates(updates).Error
}
