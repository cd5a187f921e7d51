package jobqueue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a queued job carries.
type JobType string

const (
	JobTypeOptimization JobType = "optimization"
)

// JobStatus tracks a job through its lifecycle inside the queue.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const (
	jobKeyPrefix     = "resumeforge:job:"
	queueKey         = "resumeforge:jobs:optimization"
	processingKey    = "resumeforge:jobs:processing"
	jobRetentionTime = 24 * time.Hour
)

// Job is the unit of work stored in Redis.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// NewJob creates a pending job with a fresh ID.
func NewJob(jobType JobType, payload map[string]interface{}) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// OptimizationPayload is the payload schema for JobTypeOptimization.
type OptimizationPayload struct {
	OptimizationUUID string
	UserID           uint
	OperationID      string
}

// ToMap converts the payload into the generic job payload form.
func (p OptimizationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"optimization_uuid": p.OptimizationUUID,
		"user_id":           float64(p.UserID),
		"operation_id":      p.OperationID,
	}
}

// OptimizationPayloadFromMap reads the payload back out of a job. JSON
// round-trips numbers as float64, so user_id is decoded from that form.
func OptimizationPayloadFromMap(m map[string]interface{}) (OptimizationPayload, error) {
	var p OptimizationPayload

	id, ok := m["optimization_uuid"].(string)
	if !ok || id == "" {
		return p, fmt.Errorf("payload missing optimization_uuid")
	}
	userID, ok := m["user_id"].(float64)
	if !ok || userID <= 0 {
		return p, fmt.Errorf("payload missing user_id")
	}
	opID, _ := m["operation_id"].(string)

	p.OptimizationUUID = id
	p.UserID = uint(userID)
	p.OperationID = opID
	return p, nil
}
