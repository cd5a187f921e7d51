package models

import "time"

// Ledger entry reasons. Every balance mutation carries exactly one.
const (
	LedgerReasonPurchase             = "purchase"
	LedgerReasonOptimizationConsumed = "optimization-consumed"
	LedgerReasonRefund               = "refund"
	LedgerReasonAdjustment           = "adjustment"
)

// LedgerEntry is the immutable audit record of a single balance mutation.
// Entries are append-only; they are never updated or deleted.
type LedgerEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EntryID       string    `gorm:"type:char(36);uniqueIndex;not null" json:"entry_id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Delta         int64     `gorm:"not null" json:"delta"`
	Reason        string    `gorm:"type:varchar(50);not null;index" json:"reason"`
	SourceEventID string    `gorm:"type:varchar(191);default:'';index" json:"source_event_id,omitempty"`
	OperationID   string    `gorm:"type:varchar(191);default:''" json:"operation_id,omitempty"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// IsValidLedgerReason reports whether the reason is one of the known enums.
func IsValidLedgerReason(reason string) bool {
	switch reason {
	case LedgerReasonPurchase, LedgerReasonOptimizationConsumed, LedgerReasonRefund, LedgerReasonAdjustment:
		return true
	}
	return false
}
