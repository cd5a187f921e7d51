package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resumeforge/ResumeForge/app/controllers"
	"github.com/resumeforge/ResumeForge/internal/pkg/constants"
)

type WebhookRouter struct {
}

// InstallRouter registers the payment provider webhook endpoint. No auth
// middleware here; the timestamped HMAC signature is the authentication.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.WebhooksRoute, controllers.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
