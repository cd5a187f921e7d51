package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resumeforge/ResumeForge/internal/pkg/middleware"
)

// ServerInterface lists the handlers the v1 API exposes.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	GetCreditsCheck(c *fiber.Ctx) error
	GetCreditsLedger(c *fiber.Ctx) error
	PostOptimization(c *fiber.Ctx) error
	GetOptimization(c *fiber.Ctx) error
	PostAdminCreditsAdjust(c *fiber.Ctx) error
	GetAdminWebhookMetrics(c *fiber.Ctx) error
}

// RegisterHandlers wires the v1 routes onto the given router group.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	router.Get("/ping", si.GetPing)

	authed := router.Group("", middleware.APIKeyAuthMiddleware())
	authed.Get("/credits/check", si.GetCreditsCheck)
	authed.Get("/credits/ledger", si.GetCreditsLedger)
	authed.Post("/optimizations", si.PostOptimization)
	authed.Get("/optimizations/:id", si.GetOptimization)

	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Post("/credits/adjust", si.PostAdminCreditsAdjust)
	admin.Get("/metrics/webhooks", si.GetAdminWebhookMetrics)
}
