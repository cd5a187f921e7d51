package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/internal/pkg/metrics/counter"
)

// HandleAdminWebhookMetrics returns the accumulated webhook outcome
// counters (processed, duplicate, ignored, rejected, failed).
func HandleAdminWebhookMetrics(c *fiber.Ctx) error {
	outcomes, err := counter.WebhookOutcomes()
	if err != nil {
		logrus.WithError(err).Error("webhook outcome counters unavailable")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to read counters"})
	}
	return c.JSON(fiber.Map{"outcomes": outcomes})
}
