package credits

import (
	"context"

	"github.com/resumeforge/ResumeForge/app/models"
)

// Reservation confirms one consumed credit for a gated operation.
type Reservation struct {
	OperationID string `json:"operation_id"`
	Remaining   int64  `json:"remaining"`
}

// Gate is the pre-flight credit check for consuming features. It shares the
// ledger (and therefore the same transactional primitive) with the webhook
// credit path.
type Gate struct {
	ledger *Ledger
}

// NewGate creates a credit gate over the given ledger.
func NewGate(ledger *Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// ReserveOne atomically consumes a single credit for the operation, or fails
// with ErrInsufficientCredits leaving the balance unchanged. operationID is
// recorded on the ledger entry for traceability only: repeated calls with
// the same id are independent debits, and callers needing idempotency must
// deduplicate on their side before reserving.
func (g *Gate) ReserveOne(ctx context.Context, userID uint, operationID string) (*Reservation, error) {
	remaining, err := g.ledger.Debit(ctx, userID, 1, models.LedgerReasonOptimizationConsumed, operationID)
	if err != nil {
		return nil, err
	}
	return &Reservation{OperationID: operationID, Remaining: remaining}, nil
}
