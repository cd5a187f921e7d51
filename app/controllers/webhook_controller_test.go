package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/app/repository"
	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
	"github.com/resumeforge/ResumeForge/internal/pkg/jobqueue"
	"github.com/resumeforge/ResumeForge/internal/pkg/payments"
	"github.com/resumeforge/ResumeForge/internal/pkg/usercontext"
)

const webhookTestSecret = "whsec_controller_test"

// In-memory repository doubles with the same semantics as the GORM
// implementations: unique (provider, event id) insert, processed-once
// marker, non-negative balances.

type memEventStore struct {
	mu    sync.Mutex
	seq   uint
	byKey map[string]*models.WebhookEvent
	byID  map[uint]*models.WebhookEvent
}

func newMemEventStore() *memEventStore {
	return &memEventStore{byKey: map[string]*models.WebhookEvent{}, byID: map[uint]*models.WebhookEvent{}}
}

func (f *memEventStore) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.byKey[key]; ok {
		copied := *existing
		return false, &copied, nil
	}
	f.seq++
	event.ID = f.seq
	stored := *event
	f.byKey[key] = &stored
	f.byID[stored.ID] = &stored
	copied := stored
	return true, &copied, nil
}

func (f *memEventStore) GetByProviderEventID(provider, providerEventID string) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byKey[provider+"/"+providerEventID]; ok {
		copied := *existing
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *memEventStore) HasBeenProcessed(provider, providerEventID string) (bool, error) {
	event, err := f.GetByProviderEventID(provider, providerEventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return event.IsProcessed(), nil
}

func (f *memEventStore) MarkProcessed(id uint, processingErr error) error {
	return f.MarkProcessedTx(nil, id)
}

func (f *memEventStore) RecordProcessingError(id uint, processingErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.byID[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if processingErr != nil {
		event.ProcessingError = processingErr.Error()
	}
	return nil
}

func (f *memEventStore) MarkProcessedTx(tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.byID[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if event.ProcessedAt != nil {
		return repository.ErrEventAlreadyProcessed
	}
	now := time.Now()
	event.ProcessedAt = &now
	return nil
}

type memCreditStore struct {
	mu       sync.Mutex
	balances map[uint]int64
	entries  []models.LedgerEntry
	events   *memEventStore
}

func newMemCreditStore(events *memEventStore) *memCreditStore {
	return &memCreditStore{balances: map[uint]int64{}, events: events}
}

func (f *memCreditStore) Balance(userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *memCreditStore) Apply(m repository.LedgerMutation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Delta == 0 {
		return 0, repository.ErrInvalidAmount
	}
	balance := f.balances[m.UserID]
	delta := m.Delta
	if delta < 0 && -delta > balance {
		if !m.ClampToBalance {
			return 0, repository.ErrInsufficientCredits
		}
		delta = -balance
	}
	if m.WebhookEventID != 0 {
		if err := f.events.MarkProcessedTx(nil, m.WebhookEventID); err != nil {
			return 0, err
		}
	}
	if delta != 0 {
		balance += delta
		f.balances[m.UserID] = balance
		f.entries = append(f.entries, models.LedgerEntry{
			UserID:        m.UserID,
			Delta:         delta,
			Reason:        m.Reason,
			SourceEventID: m.SourceEventID,
			OperationID:   m.OperationID,
		})
	}
	return balance, nil
}

func (f *memCreditStore) Entries(userID uint, limit int) ([]models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *memCreditStore) SumDeltas(userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, e := range f.entries {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum, nil
}

type memOptimizations struct {
	mu   sync.Mutex
	rows map[string]*models.Optimization
}

func newMemOptimizations() *memOptimizations {
	return &memOptimizations{rows: map[string]*models.Optimization{}}
}

func (r *memOptimizations) Create(opt *models.Optimization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[opt.UUID] = opt
	return nil
}

func (r *memOptimizations) GetByUUID(uuid string) (*models.Optimization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	opt, ok := r.rows[uuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *opt
	return &cp, nil
}

func (r *memOptimizations) UpdateStatus(uuid string, status string, errorReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	opt, ok := r.rows[uuid]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	opt.Status = status
	opt.ErrorReason = errorReason
	return nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []jobqueue.OptimizationPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueOptimization(ctx context.Context, payload jobqueue.OptimizationPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	return "job-1", nil
}

type testEnv struct {
	app     *fiber.App
	events  *memEventStore
	store   *memCreditStore
	opts    *memOptimizations
	queue   *fakeEnqueuer
	ledger  *credits.Ledger
	prevSvc *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	events := newMemEventStore()
	store := newMemCreditStore(events)
	opts := newMemOptimizations()
	queue := &fakeEnqueuer{}
	ledger := credits.NewLedger(store, nil)

	env := &testEnv{
		app:     fiber.New(),
		events:  events,
		store:   store,
		opts:    opts,
		queue:   queue,
		ledger:  ledger,
		prevSvc: services,
	}
	InitServices(&Services{
		Ledger:        ledger,
		Gate:          credits.NewGate(ledger),
		Dispatcher:    payments.NewDispatcher(events, ledger, payments.DispatcherConfig{Secrets: map[string]string{"stripe": webhookTestSecret}}),
		Queue:         queue,
		Optimizations: opts,
	})
	t.Cleanup(func() { services = env.prevSvc })

	// Test auth shim: injects the user context the API key middleware
	// would have set.
	asUser := func(userID uint) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("USER_CONTEXT", usercontext.UserContext{UserID: userID, Username: "tester", IsLoggedIn: true})
			c.Locals(usercontext.KeyFromProtected, true)
			c.Locals(usercontext.KeyUserID, userID)
			return c.Next()
		}
	}

	env.app.Post("/webhooks/:provider", HandlePaymentWebhook)
	env.app.Get("/api/v1/credits/check", asUser(7), HandleCreditsCheck)
	env.app.Get("/api/v1/credits/ledger", asUser(7), HandleCreditsLedger)
	env.app.Post("/api/v1/optimizations", asUser(7), HandleCreateOptimization)
	env.app.Get("/api/v1/optimizations/:id", asUser(7), HandleGetOptimization)
	return env
}

func checkoutBody(eventID string, userID uint, amount int) string {
	return fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"metadata":{"user_id":"%d","credits":"%d"}}}}`,
		eventID, userID, amount,
	)
}

func TestWebhookPurchaseReturnsOK(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("evt_http_1", 7, 10)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", payments.ComputeSignatureHeader([]byte(body), webhookTestSecret, time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `"status":"processed"`)

	balance, _ := env.store.Balance(7)
	assert.Equal(t, int64(10), balance)
}

func TestWebhookDuplicateDeliveryStaysOK(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("evt_http_2", 7, 5)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(body)))
		req.Header.Set("Stripe-Signature", payments.ComputeSignatureHeader([]byte(body), webhookTestSecret, time.Now()))
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	balance, _ := env.store.Balance(7)
	assert.Equal(t, int64(5), balance)
}

func TestWebhookBadSignatureReturns401(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("evt_http_3", 7, 5)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", payments.ComputeSignatureHeader([]byte(body), "wrong-secret", time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Nothing was persisted for the rejected delivery.
	_, getErr := env.events.GetByProviderEventID("stripe", "evt_http_3")
	assert.ErrorIs(t, getErr, gorm.ErrRecordNotFound)
}

func TestWebhookMalformedEnvelopeReturns422(t *testing.T) {
	env := newTestEnv(t)

	body := `{"type":"checkout.session.completed"}`
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", payments.ComputeSignatureHeader([]byte(body), webhookTestSecret, time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestWebhookInvalidMetadataReturnsRetryable(t *testing.T) {
	env := newTestEnv(t)

	// Valid envelope, unusable metadata (no user_id). The event is
	// ingested but left unprocessed, so the provider must see a 5xx and
	// redeliver.
	body := `{"id":"evt_http_5","type":"checkout.session.completed","data":{"object":{"metadata":{"credits":"10"}}}}`
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", payments.ComputeSignatureHeader([]byte(body), webhookTestSecret, time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	event, getErr := env.events.GetByProviderEventID("stripe", "evt_http_5")
	require.NoError(t, getErr)
	assert.False(t, event.IsProcessed())

	balance, _ := env.store.Balance(7)
	assert.Equal(t, int64(0), balance)
}

func TestWebhookUnknownProviderReturns401(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("evt_http_4", 7, 5)
	req := httptest.NewRequest("POST", "/webhooks/unconfigured", bytes.NewReader([]byte(body)))
	req.Header.Set("X-Webhook-Signature", payments.ComputeSignatureHeader([]byte(body), webhookTestSecret, time.Now()))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
