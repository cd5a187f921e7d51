package models

import "time"

// Optimization job states.
const (
	OptimizationStatusQueued     = "queued"
	OptimizationStatusProcessing = "processing"
	OptimizationStatusCompleted  = "completed"
	OptimizationStatusFailed     = "failed"
)

// Optimization records a single gated resume-optimization run. The matching
// engine itself lives in a separate service; this row tracks the credit
// reservation and the job lifecycle.
type Optimization struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	OperationID string     `gorm:"type:varchar(191);not null;index" json:"operation_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`
	ErrorReason string     `gorm:"type:text" json:"error_reason,omitempty"`
	StartedAt   *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	FinishedAt  *time.Time `gorm:"type:timestamp;default:null" json:"finished_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
