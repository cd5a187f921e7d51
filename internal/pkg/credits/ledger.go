package credits

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/app/repository"
)

// Error aliases so callers depend on this package only.
var (
	ErrInsufficientCredits = repository.ErrInsufficientCredits
	ErrInvalidAmount       = repository.ErrInvalidAmount
	ErrStorageContention   = repository.ErrStorageContention
)

// BalanceCache caches balance reads. Implementations are best-effort: a
// failing cache must degrade to misses, never to stale reads after a
// mutation (Invalidate runs after every committed Apply).
type BalanceCache interface {
	GetBalance(ctx context.Context, userID uint) (int64, bool)
	SetBalance(ctx context.Context, userID uint, balance int64)
	Invalidate(ctx context.Context, userID uint)
}

// Ledger provides atomic credit accounting on top of the credit repository.
// It owns no transaction logic itself; per-account serialization lives in
// repository.CreditRepository.Apply.
type Ledger struct {
	repo  repository.CreditRepository
	cache BalanceCache
	log   *logrus.Entry
}

// NewLedger creates a ledger service. cache may be nil to disable caching.
func NewLedger(repo repository.CreditRepository, cache BalanceCache) *Ledger {
	return &Ledger{
		repo:  repo,
		cache: cache,
		log:   logrus.WithField("component", "credits"),
	}
}

// Credit adds amount credits to the user's account. amount must be positive.
func (l *Ledger) Credit(ctx context.Context, userID uint, amount int64, reason, sourceEventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, repository.LedgerMutation{
		UserID:        userID,
		Delta:         amount,
		Reason:        reason,
		SourceEventID: sourceEventID,
	})
}

// CreditForEvent credits a purchase and marks the webhook event processed in
// the same transaction, making the mutation exactly-once per provider event.
func (l *Ledger) CreditForEvent(ctx context.Context, userID uint, amount int64, eventRowID uint, providerEventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, repository.LedgerMutation{
		UserID:         userID,
		Delta:          amount,
		Reason:         models.LedgerReasonPurchase,
		SourceEventID:  providerEventID,
		WebhookEventID: eventRowID,
	})
}

// RefundForEvent claws back up to amount credits for a refunded charge. The
// debit is clamped to the current balance, so accounts already spent down
// simply go to zero.
func (l *Ledger) RefundForEvent(ctx context.Context, userID uint, amount int64, eventRowID uint, providerEventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, repository.LedgerMutation{
		UserID:         userID,
		Delta:          -amount,
		Reason:         models.LedgerReasonRefund,
		SourceEventID:  providerEventID,
		WebhookEventID: eventRowID,
		ClampToBalance: true,
	})
}

// Debit removes amount credits, failing with ErrInsufficientCredits when the
// balance would go negative. The balance is untouched on failure.
func (l *Ledger) Debit(ctx context.Context, userID uint, amount int64, reason, operationID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, repository.LedgerMutation{
		UserID:      userID,
		Delta:       -amount,
		Reason:      reason,
		OperationID: operationID,
	})
}

// Adjust applies a signed manual correction (admin only).
func (l *Ledger) Adjust(ctx context.Context, userID uint, delta int64, note string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, repository.LedgerMutation{
		UserID: userID,
		Delta:  delta,
		Reason: models.LedgerReasonAdjustment,
		Note:   note,
	})
}

// Balance returns the current balance, served from cache when possible.
func (l *Ledger) Balance(ctx context.Context, userID uint) (int64, error) {
	if l.cache != nil {
		if balance, ok := l.cache.GetBalance(ctx, userID); ok {
			return balance, nil
		}
	}
	balance, err := l.repo.Balance(userID)
	if err != nil {
		return 0, err
	}
	if l.cache != nil {
		l.cache.SetBalance(ctx, userID, balance)
	}
	return balance, nil
}

// Entries lists the most recent ledger entries for the user.
func (l *Ledger) Entries(ctx context.Context, userID uint, limit int) ([]models.LedgerEntry, error) {
	_ = ctx
	return l.repo.Entries(userID, limit)
}

// Reconcile recomputes the balance from the audit trail and reports both
// values. They must be equal; a mismatch means the invariant was broken.
func (l *Ledger) Reconcile(ctx context.Context, userID uint) (balance, sum int64, err error) {
	_ = ctx
	balance, err = l.repo.Balance(userID)
	if err != nil {
		return 0, 0, err
	}
	sum, err = l.repo.SumDeltas(userID)
	if err != nil {
		return 0, 0, err
	}
	return balance, sum, nil
}

func (l *Ledger) apply(ctx context.Context, m repository.LedgerMutation) (int64, error) {
	newBalance, err := l.repo.Apply(m)
	if err != nil {
		if !errors.Is(err, ErrInsufficientCredits) {
			l.log.WithError(err).WithFields(logrus.Fields{
				"user_id": m.UserID,
				"reason":  m.Reason,
			}).Warn("ledger mutation failed")
		}
		return 0, err
	}
	if l.cache != nil {
		l.cache.Invalidate(ctx, m.UserID)
	}
	l.log.WithFields(logrus.Fields{
		"user_id":     m.UserID,
		"delta":       m.Delta,
		"reason":      m.Reason,
		"new_balance": newBalance,
	}).Debug("ledger mutation applied")
	return newBalance, nil
}
