package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/internal/pkg/usercontext"
)

const (
	defaultLedgerPageSize = 50
	maxLedgerPageSize     = 200
)

// HandleCreditsCheck returns the authenticated user's current credit balance.
func HandleCreditsCheck(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	balance, err := GetServices().Ledger.Balance(c.Context(), userCtx.UserID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userCtx.UserID).Error("balance lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load balance"})
	}

	return c.JSON(fiber.Map{"credits": balance})
}

// HandleCreditsLedger returns the most recent ledger entries for the
// authenticated user, newest first.
func HandleCreditsLedger(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	limit := defaultLedgerPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "limit must be a positive integer"})
		}
		limit = parsed
	}
	if limit > maxLedgerPageSize {
		limit = maxLedgerPageSize
	}

	entries, err := GetServices().Ledger.Entries(c.Context(), userCtx.UserID, limit)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userCtx.UserID).Error("ledger lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load ledger"})
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"entry_id":        e.EntryID,
			"delta":           e.Delta,
			"reason":          e.Reason,
			"source_event_id": e.SourceEventID,
			"operation_id":    e.OperationID,
			"note":            e.Note,
			"created_at":      e.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"entries": items})
}
