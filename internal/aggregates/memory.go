package aggregates

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type windowEntry struct {
	amount decimal.Decimal
	at     time.Time
}

// MemoryAggregateStore is an in-process implementation of the windowed
// aggregate contract with the same pruning semantics as the Redis store.
// It backs unit tests and single-node development setups.
type MemoryAggregateStore struct {
	mu      sync.RWMutex
	entries map[string][]windowEntry

	// Now is the clock used for window pruning; tests may pin it.
	Now func() time.Time
}

// NewMemoryAggregateStore creates an empty in-memory store.
func NewMemoryAggregateStore() *MemoryAggregateStore {
	return &MemoryAggregateStore{
		entries: make(map[string][]windowEntry),
		Now:     time.Now,
	}
}

// Total24h returns the rolling 24-hour transacted amount for an account.
func (s *MemoryAggregateStore) Total24h(_ context.Context, account string) (decimal.Decimal, error) {
	cutoff := s.Now().Add(-amountWindow)

	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, e := range s.entries[account] {
		if e.at.After(cutoff) {
			total = total.Add(e.amount)
		}
	}
	return total, nil
}

// Count1h returns the rolling 1-hour transaction count for an account.
func (s *MemoryAggregateStore) Count1h(_ context.Context, account string) (int64, error) {
	cutoff := s.Now().Add(-countWindow)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, e := range s.entries[account] {
		if e.at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// Record appends a transaction to the account's windows and prunes entries
// that have left the longer window.
func (s *MemoryAggregateStore) Record(_ context.Context, account string, _ string, amount decimal.Decimal, at time.Time) error {
	cutoff := s.Now().Add(-amountWindow)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[account][:0]
	for _, e := range s.entries[account] {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	s.entries[account] = append(kept, windowEntry{amount: amount, at: at})
	return nil
}
