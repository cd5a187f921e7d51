package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
	"github.com/resumeforge/ResumeForge/internal/pkg/jobqueue"
	"github.com/resumeforge/ResumeForge/internal/pkg/usercontext"
)

// HandleCreateOptimization reserves one credit and enqueues an optimization
// run. The debit happens before the row and the job exist: a user who cannot
// pay never enters the queue.
func HandleCreateOptimization(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	svc := GetServices()
	operationID := uuid.NewString()

	reservation, err := svc.Gate.ReserveOne(c.Context(), userCtx.UserID, operationID)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":   "payment_required",
				"message": "Not enough credits for an optimization",
			})
		}
		logrus.WithError(err).WithField("user_id", userCtx.UserID).Error("credit reservation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to reserve credit"})
	}

	opt := &models.Optimization{
		UUID:        uuid.NewString(),
		UserID:      userCtx.UserID,
		OperationID: operationID,
		Status:      models.OptimizationStatusQueued,
	}
	optRepo := svc.Optimizations
	if err := optRepo.Create(opt); err != nil {
		// The credit is already consumed; refund it so the failure is clean.
		if _, refundErr := svc.Ledger.Adjust(c.Context(), userCtx.UserID, 1, "optimization enqueue failed: "+operationID); refundErr != nil {
			logrus.WithError(refundErr).WithField("operation_id", operationID).Error("failed to return credit after enqueue failure")
		}
		logrus.WithError(err).WithField("user_id", userCtx.UserID).Error("optimization create failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create optimization"})
	}

	if _, err := svc.Queue.EnqueueOptimization(c.Context(), jobqueue.OptimizationPayload{
		OptimizationUUID: opt.UUID,
		UserID:           userCtx.UserID,
		OperationID:      operationID,
	}); err != nil {
		logrus.WithError(err).WithField("optimization", opt.UUID).Error("enqueue failed")
		if updErr := optRepo.UpdateStatus(opt.UUID, models.OptimizationStatusFailed, "enqueue failed"); updErr != nil {
			logrus.WithError(updErr).WithField("optimization", opt.UUID).Error("failed to mark optimization failed")
		}
		if _, refundErr := svc.Ledger.Adjust(c.Context(), userCtx.UserID, 1, "optimization enqueue failed: "+operationID); refundErr != nil {
			logrus.WithError(refundErr).WithField("operation_id", operationID).Error("failed to return credit after enqueue failure")
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue optimization"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":                opt.UUID,
		"operation_id":      operationID,
		"status":            opt.Status,
		"credits_remaining": reservation.Remaining,
	})
}

// HandleGetOptimization returns the status of one optimization owned by the
// authenticated user.
func HandleGetOptimization(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	id := c.Params("id")
	opt, err := GetServices().Optimizations.GetByUUID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Optimization not found"})
		}
		logrus.WithError(err).WithField("optimization", id).Error("optimization lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load optimization"})
	}
	if opt.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Optimization not found"})
	}

	resp := fiber.Map{
		"id":           opt.UUID,
		"operation_id": opt.OperationID,
		"status":       opt.Status,
		"created_at":   opt.CreatedAt,
	}
	if opt.ErrorReason != "" {
		resp["error_reason"] = opt.ErrorReason
	}
	if opt.StartedAt != nil {
		resp["started_at"] = opt.StartedAt
	}
	if opt.FinishedAt != nil {
		resp["finished_at"] = opt.FinishedAt
	}
	return c.JSON(resp)
}
