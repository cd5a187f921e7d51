package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/resumeforge/ResumeForge/app/controllers"
)

// Pong is the ping endpoint response.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetCreditsCheck returns the caller's credit balance.
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetCreditsCheck(c *fiber.Ctx) error {
	return controllers.HandleCreditsCheck(c)
}

// GetCreditsLedger returns the caller's recent ledger entries.
func (s *APIServer) GetCreditsLedger(c *fiber.Ctx) error {
	return controllers.HandleCreditsLedger(c)
}

// PostOptimization reserves a credit and enqueues an optimization run.
func (s *APIServer) PostOptimization(c *fiber.Ctx) error {
	return controllers.HandleCreateOptimization(c)
}

// GetOptimization returns the status of one optimization.
func (s *APIServer) GetOptimization(c *fiber.Ctx) error {
	return controllers.HandleGetOptimization(c)
}

// PostAdminCreditsAdjust applies a manual credit correction (admin only).
func (s *APIServer) PostAdminCreditsAdjust(c *fiber.Ctx) error {
	return controllers.HandleAdminCreditsAdjust(c)
}

// GetAdminWebhookMetrics exposes webhook outcome counters (admin only).
func (s *APIServer) GetAdminWebhookMetrics(c *fiber.Ctx) error {
	return controllers.HandleAdminWebhookMetrics(c)
}
