package memory

import (
	"context"
	"sort"
	"sync"

	billing "abstraction-billing/internal/billing/domain"
)

// BillingVolumeRepository is an in-memory billing volume store.
type BillingVolumeRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.BillingVolume
}

// NewBillingVolumeRepository constructs a repository.
func NewBillingVolumeRepository() *BillingVolumeRepository {
	return &BillingVolumeRepository{data: make(map[string]*billing.BillingVolume)}
}

// Save upserts volumes by id.
func (r *BillingVolumeRepository) Save(ctx context.Context, volumes []*billing.BillingVolume) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range volumes {
		if v == nil || v.ID == "" {
			return billing.ErrEmptyID
		}
		c := *v
		r.data[v.ID] = &c
	}
	return nil
}

// FindForSeason returns the batch volumes for the year, season and elements.
func (r *BillingVolumeRepository) FindForSeason(ctx context.Context, batchID string, fy billing.FinancialYear, isSummer bool, chargeElementIDs []string) ([]*billing.BillingVolume, error) {
	_ = ctx
	wanted := make(map[string]bool, len(chargeElementIDs))
	for _, id := range chargeElementIDs {
		wanted[id] = true
	}
	return r.list(func(v *billing.BillingVolume) bool {
		return v.BatchID == batchID && v.FinancialYear == fy && v.IsSummer == isSummer && wanted[v.ChargeElementID]
	}), nil
}

// ListByBatch returns every volume of the batch.
func (r *BillingVolumeRepository) ListByBatch(ctx context.Context, batchID string) ([]*billing.BillingVolume, error) {
	_ = ctx
	return r.list(func(v *billing.BillingVolume) bool { return v.BatchID == batchID }), nil
}

// CountUnapproved counts batch volumes awaiting review.
func (r *BillingVolumeRepository) CountUnapproved(ctx context.Context, batchID string) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, v := range r.data {
		if v.BatchID == batchID && !v.IsApproved {
			n++
		}
	}
	return n, nil
}

// ApproveByBatch approves every volume of the batch.
func (r *BillingVolumeRepository) ApproveByBatch(ctx context.Context, batchID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.data {
		if v.BatchID == batchID {
			v.Approve()
		}
	}
	return nil
}

// DeleteByBatch removes the batch volumes.
func (r *BillingVolumeRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.data {
		if v.BatchID == batchID {
			delete(r.data, id)
		}
	}
	return nil
}

func (r *BillingVolumeRepository) list(match func(*billing.BillingVolume) bool) []*billing.BillingVolume {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*billing.BillingVolume, 0)
	for _, v := range r.data {
		if match(v) {
			c := *v
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChargeElementID != result[j].ChargeElementID {
			return result[i].ChargeElementID < result[j].ChargeElementID
		}
		return result[i].ID < result[j].ID
	})
	return result
}
