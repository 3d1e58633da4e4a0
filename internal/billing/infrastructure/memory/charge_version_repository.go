package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "abstraction-billing/internal/billing/domain"
)

// ChargeVersionRepository is an in-memory charge version store.
type ChargeVersionRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.ChargeVersion
}

// NewChargeVersionRepository constructs a repository.
func NewChargeVersionRepository() *ChargeVersionRepository {
	return &ChargeVersionRepository{data: make(map[string]*billing.ChargeVersion)}
}

// Save upserts a charge version.
func (r *ChargeVersionRepository) Save(ctx context.Context, cv *billing.ChargeVersion) error {
	_ = ctx
	if cv == nil {
		return billing.ErrNilChargeVersion
	}
	if cv.ID == "" {
		return billing.ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[cv.ID] = cloneChargeVersion(cv)
	return nil
}

// FindByID loads a charge version.
func (r *ChargeVersionRepository) FindByID(ctx context.Context, id string) (*billing.ChargeVersion, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	cv := r.data[id]
	if cv == nil {
		return nil, billing.ErrChargeVersionNotFound
	}
	return cloneChargeVersion(cv), nil
}

// ListByRegion returns charge versions in the region overlapping period,
// ordered by licence number and version number.
func (r *ChargeVersionRepository) ListByRegion(ctx context.Context, regionID string, period billing.DateRange) ([]*billing.ChargeVersion, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*billing.ChargeVersion, 0)
	for _, cv := range r.data {
		if cv.Licence.RegionID != regionID || !cv.DateRange.Overlaps(period) {
			continue
		}
		result = append(result, cloneChargeVersion(cv))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Licence.LicenceNumber != result[j].Licence.LicenceNumber {
			return result[i].Licence.LicenceNumber < result[j].Licence.LicenceNumber
		}
		return result[i].VersionNumber < result[j].VersionNumber
	})
	return result, nil
}

func cloneChargeVersion(cv *billing.ChargeVersion) *billing.ChargeVersion {
	c := *cv
	c.Elements = append([]billing.ChargeElement(nil), cv.Elements...)
	c.Licence.Agreements = append([]billing.LicenceAgreement(nil), cv.Licence.Agreements...)
	return &c
}

// ChargeVersionYearRepository is an in-memory store of batch work items.
type ChargeVersionYearRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.ChargeVersionYear
}

// NewChargeVersionYearRepository constructs a repository.
func NewChargeVersionYearRepository() *ChargeVersionYearRepository {
	return &ChargeVersionYearRepository{data: make(map[string]*billing.ChargeVersionYear)}
}

// Insert stores a new row.
func (r *ChargeVersionYearRepository) Insert(ctx context.Context, cvy *billing.ChargeVersionYear) error {
	_ = ctx
	if cvy == nil || cvy.ID == "" {
		return billing.ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cvy
	r.data[cvy.ID] = &c
	return nil
}

// FindByID loads a row.
func (r *ChargeVersionYearRepository) FindByID(ctx context.Context, id string) (*billing.ChargeVersionYear, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	cvy := r.data[id]
	if cvy == nil {
		return nil, billing.ErrChargeVersionYearNotFound
	}
	c := *cvy
	return &c, nil
}

// SetStatus updates the row status.
func (r *ChargeVersionYearRepository) SetStatus(ctx context.Context, id string, status billing.ChargeVersionYearStatus, now time.Time) error {
	_ = ctx
	if _, err := billing.ParseChargeVersionYearStatus(string(status)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cvy := r.data[id]
	if cvy == nil {
		return billing.ErrChargeVersionYearNotFound
	}
	cvy.Status = status
	cvy.UpdatedAt = now.UTC()
	return nil
}

// CountByStatus counts the batch rows per status.
func (r *ChargeVersionYearRepository) CountByStatus(ctx context.Context, batchID string) (billing.StatusCounts, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var counts billing.StatusCounts
	for _, cvy := range r.data {
		if cvy.BatchID == batchID {
			counts.Add(cvy.Status, 1)
		}
	}
	return counts, nil
}

// ListByBatch returns the batch rows ordered by id.
func (r *ChargeVersionYearRepository) ListByBatch(ctx context.Context, batchID string) []*billing.ChargeVersionYear {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*billing.ChargeVersionYear, 0)
	for _, cvy := range r.data {
		if cvy.BatchID == batchID {
			c := *cvy
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// DeleteByBatch removes the batch rows.
func (r *ChargeVersionYearRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cvy := range r.data {
		if cvy.BatchID == batchID {
			delete(r.data, id)
		}
	}
	return nil
}
