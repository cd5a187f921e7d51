package controllers

import (
	"context"

	"github.com/resumeforge/ResumeForge/app/repository"
	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
	"github.com/resumeforge/ResumeForge/internal/pkg/jobqueue"
	"github.com/resumeforge/ResumeForge/internal/pkg/payments"
)

// OptimizationEnqueuer hands accepted optimizations to the job queue.
// Satisfied by jobqueue.Queue.
type OptimizationEnqueuer interface {
	EnqueueOptimization(ctx context.Context, payload jobqueue.OptimizationPayload) (string, error)
}

// Services bundles the domain services the HTTP handlers depend on. The
// handlers reach them through a package singleton, mirroring how the
// repository factory is wired.
type Services struct {
	Ledger        *credits.Ledger
	Gate          *credits.Gate
	Dispatcher    *payments.Dispatcher
	Queue         OptimizationEnqueuer
	Optimizations repository.OptimizationRepository
}

var services *Services

// InitServices installs the shared service bundle. Call once at startup,
// after the repository factory is initialized.
func InitServices(s *Services) {
	services = s
}

// GetServices returns the shared service bundle.
func GetServices() *Services {
	if services == nil {
		panic("controllers: services not initialized")
	}
	return services
}
