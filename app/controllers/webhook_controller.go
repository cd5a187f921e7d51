package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/internal/pkg/metrics/counter"
	"github.com/resumeforge/ResumeForge/internal/pkg/payments"
)

// HandlePaymentWebhook ingests a provider webhook delivery. The raw request
// body is handed to the dispatcher untouched; any parsing before signature
// verification would break the HMAC.
//
// Responses: 200 for processed, duplicate and ignored deliveries (the
// provider must not redeliver), 401 for signature or provider failures,
// 422 for envelopes that can never succeed, 500 for anything that leaves
// the event unprocessed so the provider redelivers. Invalid checkout
// metadata falls in the last class: the event is ingested but unmarked.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider")
	payload := c.BodyRaw()
	signature := signatureHeader(c, provider)

	outcome, err := GetServices().Dispatcher.Handle(c.Context(), provider, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnknownProvider), errors.Is(err, payments.ErrAuthentication):
			_ = counter.AddWebhookOutcome("rejected")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "webhook signature verification failed",
			})
		case errors.Is(err, payments.ErrMalformedEnvelope):
			_ = counter.AddWebhookOutcome("rejected")
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   "unprocessable_entity",
				"message": err.Error(),
			})
		default:
			_ = counter.AddWebhookOutcome("failed")
			logrus.WithError(err).WithField("provider", provider).Error("webhook processing failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "event ingested, processing will be retried",
			})
		}
	}

	_ = counter.AddWebhookOutcome(string(outcome.Status))
	return c.JSON(outcome)
}

func signatureHeader(c *fiber.Ctx, provider string) string {
	if provider == "stripe" {
		if v := c.Get("Stripe-Signature"); v != "" {
			return v
		}
	}
	return c.Get("X-Webhook-Signature")
}
