package controllers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
	"github.com/resumeforge/ResumeForge/internal/pkg/usercontext"
)

type adminCreditsAdjustRequest struct {
	UserID uint   `json:"user_id" validate:"required,gt=0"`
	Delta  int64  `json:"delta" validate:"required"`
	Note   string `json:"note" validate:"required,max=500"`
}

var adminValidate = validator.New()

// HandleAdminCreditsAdjust applies a manual balance correction. The delta
// lands in the ledger like any other mutation, so the audit trail stays
// complete.
func HandleAdminCreditsAdjust(c *fiber.Ctx) error {
	var req adminCreditsAdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := adminValidate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": fmt.Sprintf("Validation failed: %v", err)})
	}

	adminCtx := usercontext.GetUserContext(c)
	balance, err := GetServices().Ledger.Adjust(c.Context(), req.UserID, req.Delta, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Adjustment would make the balance negative"})
		case errors.Is(err, credits.ErrInvalidAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Delta must be non-zero"})
		default:
			logrus.WithError(err).WithField("user_id", req.UserID).Error("credit adjustment failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to adjust credits"})
		}
	}

	logrus.WithFields(logrus.Fields{
		"admin_id": adminCtx.UserID,
		"user_id":  req.UserID,
		"delta":    req.Delta,
	}).Info("admin credit adjustment applied")

	return c.JSON(fiber.Map{"user_id": req.UserID, "credits": balance})
}
