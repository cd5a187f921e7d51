package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/resumeforge/ResumeForge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	applyMaxRetries = 3
	applyRetryDelay = 25 * time.Millisecond
)

// creditRepository implements CreditRepository on GORM. All mutations funnel
// through Apply, which serializes writers per account with a SELECT ... FOR
// UPDATE on the account row.
type creditRepository struct {
	db     *gorm.DB
	events WebhookEventRepository
}

// NewCreditRepository creates a credit ledger repository backed by GORM.
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db, events: NewWebhookEventRepository(db)}
}

// Balance reads the current balance. Accounts are created lazily by Apply;
// a missing row reads as zero.
func (r *creditRepository) Balance(userID uint) (int64, error) {
	var account models.CreditAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// Apply performs one balance mutation with a bounded retry on lock
// contention. Deadlock and lock-wait-timeout are the only errors worth
// retrying; everything else surfaces immediately.
func (r *creditRepository) Apply(m LedgerMutation) (int64, error) {
	if m.Delta == 0 {
		return 0, ErrInvalidAmount
	}
	if !models.IsValidLedgerReason(m.Reason) {
		return 0, fmt.Errorf("unknown ledger reason %q", m.Reason)
	}

	var newBalance int64
	var err error
	for attempt := 0; attempt < applyMaxRetries; attempt++ {
		newBalance, err = r.applyOnce(m)
		if err == nil || !isLockContention(err) {
			return newBalance, err
		}
		time.Sleep(applyRetryDelay * time.Duration(attempt+1))
	}
	return 0, fmt.Errorf("%w: %v", ErrStorageContention, err)
}

func (r *creditRepository) applyOnce(m LedgerMutation) (int64, error) {
	var newBalance int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		account := models.CreditAccount{UserID: m.UserID}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", m.UserID).
			FirstOrCreate(&account).Error; err != nil {
			return err
		}

		delta := m.Delta
		if delta < 0 {
			debit := -delta
			if debit > account.Balance {
				if !m.ClampToBalance {
					return ErrInsufficientCredits
				}
				debit = account.Balance
				delta = -debit
			}
		}

		if delta != 0 {
			account.Balance += delta
			if err := tx.Model(&models.CreditAccount{}).
				Where("id = ?", account.ID).
				Update("balance", account.Balance).Error; err != nil {
				return err
			}

			entry := models.LedgerEntry{
				EntryID:       uuid.NewString(),
				UserID:        m.UserID,
				Delta:         delta,
				Reason:        m.Reason,
				SourceEventID: m.SourceEventID,
				OperationID:   m.OperationID,
				Note:          m.Note,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		if m.WebhookEventID != 0 {
			if err := r.events.MarkProcessedTx(tx, m.WebhookEventID); err != nil {
				return err
			}
		}

		newBalance = account.Balance
		return nil
	})
	return newBalance, err
}

func (r *creditRepository) Entries(userID uint, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := r.db.Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *creditRepository) SumDeltas(userID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

// isLockContention reports whether the error is a MySQL deadlock (1213) or
// lock wait timeout (1205).
func isLockContention(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
