package credits

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/app/repository"
)

// memCreditStore mirrors the GORM repository's Apply semantics under a
// mutex, which stands in for the per-account row lock.
type memCreditStore struct {
	mu       sync.Mutex
	balances map[uint]int64
	entries  []models.LedgerEntry
}

func newMemCreditStore() *memCreditStore {
	return &memCreditStore{balances: make(map[uint]int64)}
}

func (s *memCreditStore) Balance(userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *memCreditStore) Apply(m repository.LedgerMutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Delta == 0 {
		return 0, repository.ErrInvalidAmount
	}
	if !models.IsValidLedgerReason(m.Reason) {
		return 0, fmt.Errorf("unknown ledger reason %q", m.Reason)
	}

	balance := s.balances[m.UserID]
	delta := m.Delta
	if delta < 0 && -delta > balance {
		if !m.ClampToBalance {
			return 0, repository.ErrInsufficientCredits
		}
		delta = -balance
	}
	if delta != 0 {
		balance += delta
		s.balances[m.UserID] = balance
		s.entries = append(s.entries, models.LedgerEntry{
			UserID:        m.UserID,
			Delta:         delta,
			Reason:        m.Reason,
			SourceEventID: m.SourceEventID,
			OperationID:   m.OperationID,
			Note:          m.Note,
		})
	}
	return balance, nil
}

func (s *memCreditStore) Entries(userID uint, limit int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *memCreditStore) SumDeltas(userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.entries {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum, nil
}

type memBalanceCache struct {
	mu          sync.Mutex
	values      map[uint]int64
	invalidated int
}

func newMemBalanceCache() *memBalanceCache {
	return &memBalanceCache{values: make(map[uint]int64)}
}

func (c *memBalanceCache) GetBalance(ctx context.Context, userID uint) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[userID]
	return v, ok
}

func (c *memBalanceCache) SetBalance(ctx context.Context, userID uint, balance int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[userID] = balance
}

func (c *memBalanceCache) Invalidate(ctx context.Context, userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, userID)
	c.invalidated++
}

func TestLedgerCreditAndDebit(t *testing.T) {
	store := newMemCreditStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	balance, err := ledger.Credit(ctx, 1, 10, models.LedgerReasonPurchase, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	balance, err = ledger.Debit(ctx, 1, 3, models.LedgerReasonOptimizationConsumed, "op_1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)

	got, sum, err := ledger.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, got, sum)
}

func TestLedgerRejectsInvalidAmounts(t *testing.T) {
	ledger := NewLedger(newMemCreditStore(), nil)
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		_, err := ledger.Credit(ctx, 1, amount, models.LedgerReasonPurchase, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = ledger.Debit(ctx, 1, amount, models.LedgerReasonOptimizationConsumed, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	_, err := ledger.Adjust(ctx, 1, 0, "noop")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedgerDebitInsufficientLeavesBalance(t *testing.T) {
	store := newMemCreditStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, 1, 2, models.LedgerReasonPurchase, "evt_1")
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, 1, 3, models.LedgerReasonOptimizationConsumed, "op_1")
	require.ErrorIs(t, err, ErrInsufficientCredits)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance)

	// The failed debit must leave no audit trace.
	sum, err := store.SumDeltas(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum)
}

func TestLedgerAdjustBothDirections(t *testing.T) {
	store := newMemCreditStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	balance, err := ledger.Adjust(ctx, 1, 5, "signup bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	balance, err = ledger.Adjust(ctx, 1, -2, "correction")
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)

	entries, err := ledger.Entries(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.LedgerReasonAdjustment, e.Reason)
	}
}

func TestLedgerCacheInvalidatedOnMutation(t *testing.T) {
	store := newMemCreditStore()
	cache := newMemBalanceCache()
	ledger := NewLedger(store, cache)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, 1, 10, models.LedgerReasonPurchase, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	// First read populates the cache.
	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	cached, ok := cache.GetBalance(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(10), cached)

	// A mutation drops the cached value so the next read sees the commit.
	_, err = ledger.Debit(ctx, 1, 1, models.LedgerReasonOptimizationConsumed, "op_1")
	require.NoError(t, err)
	_, ok = cache.GetBalance(ctx, 1)
	assert.False(t, ok)
}

func TestGateConcurrentReserveOneSingleCredit(t *testing.T) {
	store := newMemCreditStore()
	ledger := NewLedger(store, nil)
	gate := NewGate(ledger)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, 1, 1, models.LedgerReasonPurchase, "evt_1")
	require.NoError(t, err)

	const callers = 2
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := gate.ReserveOne(ctx, 1, fmt.Sprintf("op_%d", n))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientCredits)
			failed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedgerConcurrentMixedMutationsNeverNegative(t *testing.T) {
	store := newMemCreditStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, 1, 5, models.LedgerReasonPurchase, "evt_seed")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_, _ = ledger.Credit(ctx, 1, 1, models.LedgerReasonPurchase, fmt.Sprintf("evt_%d", n))
			} else {
				_, _ = ledger.Debit(ctx, 1, 2, models.LedgerReasonOptimizationConsumed, fmt.Sprintf("op_%d", n))
			}
		}(i)
	}
	wg.Wait()

	balance, sum, err := ledger.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, balance, sum)
}
