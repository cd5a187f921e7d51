package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/internal/pkg/usercontext"
)

func newAdminTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Post("/api/v1/admin/credits/adjust", func(c *fiber.Ctx) error {
		c.Locals("USER_CONTEXT", usercontext.UserContext{UserID: 1, Username: "admin", IsLoggedIn: true, IsAdmin: true})
		c.Locals(usercontext.KeyFromProtected, true)
		c.Locals(usercontext.KeyIsAdmin, true)
		return c.Next()
	}, HandleAdminCreditsAdjust)
	app.Get("/api/v1/admin/metrics/webhooks", HandleAdminWebhookMetrics)
	return app
}

func TestAdminAdjustCreditsIncreasesBalance(t *testing.T) {
	env := newTestEnv(t)
	app := newAdminTestApp(t)

	payload, _ := json.Marshal(map[string]any{"user_id": 7, "delta": 25, "note": "support goodwill"})
	req := httptest.NewRequest("POST", "/api/v1/admin/credits/adjust", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		UserID  uint  `json:"user_id"`
		Credits int64 `json:"credits"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, uint(7), out.UserID)
	assert.Equal(t, int64(25), out.Credits)

	entries, _ := env.store.Entries(7, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerReasonAdjustment, entries[0].Reason)
}

func TestAdminAdjustCannotDriveBalanceNegative(t *testing.T) {
	env := newTestEnv(t)
	app := newAdminTestApp(t)

	payload, _ := json.Marshal(map[string]any{"user_id": 7, "delta": -5, "note": "chargeback"})
	req := httptest.NewRequest("POST", "/api/v1/admin/credits/adjust", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	balance, _ := env.store.Balance(7)
	assert.Equal(t, int64(0), balance)
}

func TestAdminWebhookMetricsReturnsOutcomes(t *testing.T) {
	newTestEnv(t)
	app := newAdminTestApp(t)

	// Without a configured cache the counters read back empty, not as an
	// error.
	req := httptest.NewRequest("GET", "/api/v1/admin/metrics/webhooks", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Outcomes map[string]int64 `json:"outcomes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Outcomes)
}

func TestAdminAdjustValidatesBody(t *testing.T) {
	newTestEnv(t)
	app := newAdminTestApp(t)

	payload, _ := json.Marshal(map[string]any{"user_id": 7, "delta": 5})
	req := httptest.NewRequest("POST", "/api/v1/admin/credits/adjust", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
