package jobqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/app/repository"
	"github.com/resumeforge/ResumeForge/internal/pkg/metrics/counter"
)

// Optimizer runs a single resume optimization to completion.
type Optimizer interface {
	Optimize(ctx context.Context, optimizationUUID string, userID uint) error
}

// OptimizationProcessor drives Optimization rows through their status
// transitions while the Optimizer does the actual work.
type OptimizationProcessor struct {
	optimizations repository.OptimizationRepository
	optimizer     Optimizer
	log           *logrus.Logger
}

func NewOptimizationProcessor(opts repository.OptimizationRepository, optimizer Optimizer, log *logrus.Logger) *OptimizationProcessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OptimizationProcessor{optimizations: opts, optimizer: optimizer, log: log}
}

// Handle implements the queue Handler for JobTypeOptimization.
func (p *OptimizationProcessor) Handle(ctx context.Context, job *Job) error {
	payload, err := OptimizationPayloadFromMap(job.Payload)
	if err != nil {
		// Malformed payloads never become valid on retry.
		p.failOptimizationQuietly(job, "invalid job payload")
		return nil
	}

	log := p.log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"optimization": payload.OptimizationUUID,
		"user_id":      payload.UserID,
	})

	if err := p.optimizations.UpdateStatus(payload.OptimizationUUID, models.OptimizationStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := p.optimizer.Optimize(ctx, payload.OptimizationUUID, payload.UserID); err != nil {
		if job.RetryCount+1 >= job.MaxRetries {
			if updErr := p.optimizations.UpdateStatus(payload.OptimizationUUID, models.OptimizationStatusFailed, err.Error()); updErr != nil {
				log.WithError(updErr).Error("record optimization failure")
			}
			_ = counter.AddOptimizationStatus(models.OptimizationStatusFailed)
		}
		return fmt.Errorf("optimize: %w", err)
	}

	if err := p.optimizations.UpdateStatus(payload.OptimizationUUID, models.OptimizationStatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	_ = counter.AddOptimizationStatus(models.OptimizationStatusCompleted)
	log.Info("optimization completed")
	return nil
}

func (p *OptimizationProcessor) failOptimizationQuietly(job *Job, reason string) {
	id, ok := job.Payload["optimization_uuid"].(string)
	if !ok || id == "" {
		p.log.WithField("job_id", job.ID).Error("optimization job has no usable payload")
		return
	}
	if err := p.optimizations.UpdateStatus(id, models.OptimizationStatusFailed, reason); err != nil {
		p.log.WithError(err).WithField("optimization", id).Error("record optimization failure")
	}
}
