package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/lexgate/domain/usage"
	"github.com/artpar/lexgate/ports"
)

// DefaultMaxUsageRecords bounds the in-memory ledger.
const DefaultMaxUsageRecords = 10000

// UsageStore is a bounded, append-only in-memory ledger. Once it holds more
// than maxRecords, the oldest records are dropped.
type UsageStore struct {
	mu         sync.RWMutex
	records    []usage.Record
	maxRecords int
}

// NewUsageStore creates a ledger holding at most maxRecords records
// (DefaultMaxUsageRecords when maxRecords <= 0).
func NewUsageStore(maxRecords int) *UsageStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxUsageRecords
	}
	return &UsageStore{maxRecords: maxRecords}
}

// Append adds a record and trims the oldest past capacity.
func (s *UsageStore) Append(ctx context.Context, r usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
	if over := len(s.records) - s.maxRecords; over > 0 {
		kept := make([]usage.Record, s.maxRecords)
		copy(kept, s.records[over:])
		s.records = kept
	}
	return nil
}

// Query returns the user's records with Timestamp in [start, end].
func (s *UsageStore) Query(ctx context.Context, userID string, start, end time.Time) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return usage.Filter(s.records, userID, start, end), nil
}

// Len returns the number of stored records.
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
