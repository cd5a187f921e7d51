package models

import "time"

// CreditAccount holds the usable credit balance for one user. The balance is
// only ever changed inside a row-locked transaction together with a
// LedgerEntry append, so that sum(ledger deltas) always equals Balance.
type CreditAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
