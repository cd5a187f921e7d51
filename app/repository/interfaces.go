package repository

import (
	"github.com/resumeforge/ResumeForge/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(userID uint) error
}

// WebhookEventRepository is the event store: an append-only record of every
// verified webhook event, keyed by (provider, provider_event_id). The unique
// index on that pair is the sole idempotency mechanism; CreateIfNotExists
// must never degrade into a check-then-insert race.
type WebhookEventRepository interface {
	// CreateIfNotExists atomically inserts the event. When the id was seen
	// before, created is false and stored holds the existing row.
	CreateIfNotExists(event *models.WebhookEvent) (created bool, stored *models.WebhookEvent, err error)
	GetByProviderEventID(provider, providerEventID string) (*models.WebhookEvent, error)
	HasBeenProcessed(provider, providerEventID string) (bool, error)
	// MarkProcessed records terminal handling outside a ledger transaction
	// (unrecognized or no-op event types).
	MarkProcessed(id uint, processingErr error) error
	// RecordProcessingError stores the failure reason while leaving
	// processed_at null, keeping the event eligible for redelivery.
	RecordProcessingError(id uint, processingErr error) error
	// MarkProcessedTx sets processed_at inside the caller's transaction,
	// guarded by `processed_at IS NULL`. Returns ErrEventAlreadyProcessed
	// when a concurrent handler won the race, ErrEventNotFound when the id
	// was never ingested.
	MarkProcessedTx(tx *gorm.DB, id uint) error
}

// LedgerMutation describes one atomic balance change. Positive Delta credits
// the account, negative Delta debits it.
type LedgerMutation struct {
	UserID        uint
	Delta         int64
	Reason        string
	SourceEventID string
	OperationID   string
	Note          string
	// WebhookEventID, when non-zero, marks that webhook event processed in
	// the same transaction as the balance write. This is what makes a
	// ledger mutation exactly-once per provider event.
	WebhookEventID uint
	// ClampToBalance caps a debit at the current balance instead of
	// failing. Used for refunds so the non-negative invariant holds even
	// when credits were already spent.
	ClampToBalance bool
}

// CreditRepository owns all reads and writes of credit_accounts and
// ledger_entries. Apply serializes mutations per account via a row lock;
// different accounts proceed in parallel.
type CreditRepository interface {
	// Balance returns the current balance, creating nothing. Missing
	// accounts read as zero.
	Balance(userID uint) (int64, error)
	// Apply performs one mutation transactionally: lock (or create) the
	// account row, check invariants, write the balance, append the ledger
	// entry, and optionally mark the webhook event processed. Returns the
	// new balance.
	Apply(m LedgerMutation) (int64, error)
	Entries(userID uint, limit int) ([]models.LedgerEntry, error)
	// SumDeltas recomputes the balance from the audit trail, for
	// reconciliation checks.
	SumDeltas(userID uint) (int64, error)
}

// OptimizationRepository tracks gated optimization runs.
type OptimizationRepository interface {
	Create(opt *models.Optimization) error
	GetByUUID(uuid string) (*models.Optimization, error)
	UpdateStatus(uuid string, status string, errorReason string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	WebhookEvent WebhookEventRepository
	Credit       CreditRepository
	Optimization OptimizationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Credit:       NewCreditRepository(db),
		Optimization: NewOptimizationRepository(db),
	}
}
