package memory

import (
	"context"
	"sync"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// LeadStore keeps persisted leads in memory.
type LeadStore struct {
	mu      sync.RWMutex
	records []leads.Lead
}

// NewLeadStore constructs a LeadStore.
func NewLeadStore() *LeadStore {
	return &LeadStore{}
}

// BulkInsert appends all records.
func (s *LeadStore) BulkInsert(_ context.Context, records []leads.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// ListByVendorCategory returns leads matching the vendor and project category.
func (s *LeadStore) ListByVendorCategory(_ context.Context, vendorID, category string) ([]leads.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leads.Lead
	for _, rec := range s.records {
		if rec.VendorID == vendorID && (category == "" || rec.ProjectCategory == category) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count reports the number of persisted leads.
func (s *LeadStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
