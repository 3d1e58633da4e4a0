package memory

import (
	"context"
	"sort"
	"sync"

	billing "abstraction-billing/internal/billing/domain"
)

// BatchRepository is an in-memory batch repository for demo/testing.
type BatchRepository struct {
	mu       sync.RWMutex
	data     map[string]*billing.Batch
	invoices *InvoiceRepository
}

// NewBatchRepository constructs a repository. invoices is used to load the
// invoices of sent two-part-tariff batches and may be nil.
func NewBatchRepository(invoices *InvoiceRepository) *BatchRepository {
	return &BatchRepository{
		data:     make(map[string]*billing.Batch),
		invoices: invoices,
	}
}

// Save upserts a batch without its invoices.
func (r *BatchRepository) Save(ctx context.Context, batch *billing.Batch) error {
	_ = ctx
	if batch == nil {
		return billing.ErrNilBatch
	}
	if batch.ID == "" {
		return billing.ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[batch.ID] = cloneBatch(batch)
	return nil
}

// FindByID loads a batch.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*billing.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch := r.data[id]
	if batch == nil {
		return nil, billing.ErrBatchNotFound
	}
	return cloneBatch(batch), nil
}

// ListByRegion returns the region's batches, oldest first.
func (r *BatchRepository) ListByRegion(ctx context.Context, regionID string) ([]*billing.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*billing.Batch, 0)
	for _, batch := range r.data {
		if batch.RegionID == regionID {
			result = append(result, cloneBatch(batch))
		}
	}
	sortBatches(result)
	return result, nil
}

// ListSentTwoPartTariff returns sent two-part-tariff batches of the region
// with invoices for the year.
func (r *BatchRepository) ListSentTwoPartTariff(ctx context.Context, regionID string, fy billing.FinancialYear) ([]*billing.Batch, error) {
	r.mu.RLock()
	var result []*billing.Batch
	for _, batch := range r.data {
		if batch.RegionID != regionID || !batch.IsTwoPartTariff() || batch.Status != billing.BatchStatusSent {
			continue
		}
		result = append(result, cloneBatch(batch))
	}
	r.mu.RUnlock()

	sortBatches(result)
	if r.invoices == nil {
		return result, nil
	}
	for _, batch := range result {
		invoices, err := r.invoices.ListByBatch(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			if inv.FinancialYear == fy {
				batch.Invoices = append(batch.Invoices, inv)
			}
		}
	}
	return result, nil
}

// Delete removes a batch.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return billing.ErrBatchNotFound
	}
	delete(r.data, id)
	return nil
}

func cloneBatch(b *billing.Batch) *billing.Batch {
	c := *b
	c.Invoices = nil
	return &c
}

func sortBatches(batches []*billing.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}
