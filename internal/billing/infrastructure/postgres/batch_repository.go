package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "abstraction-billing/internal/billing/domain"
)

const batchColumns = `id, region_id, batch_type, start_year, end_year, is_summer, status, error_code, external_id, created_at, updated_at`

// BatchRepository persists batches.
type BatchRepository struct {
	db       *sql.DB
	invoices *InvoiceRepository
}

// NewBatchRepository constructs a repository.
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db, invoices: NewInvoiceRepository(db)}
}

// Save upserts a batch row.
func (r *BatchRepository) Save(ctx context.Context, batch *billing.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if batch == nil {
		return billing.ErrNilBatch
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO billing_batches (`+batchColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	error_code = EXCLUDED.error_code,
	external_id = EXCLUDED.external_id,
	updated_at = EXCLUDED.updated_at`,
		batch.ID, batch.RegionID, string(batch.Type), batch.StartYear.EndYear(), batch.EndYear.EndYear(), batch.IsSummer,
		string(batch.Status), int(batch.ErrorCode), batch.ExternalID, batch.CreatedAt.UTC(), batch.UpdatedAt.UTC(),
	)
	return err
}

// FindByID loads a batch without invoices.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*billing.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM billing_batches WHERE id = $1`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrBatchNotFound
	}
	return batch, err
}

// ListByRegion returns the region's batches, oldest first.
func (r *BatchRepository) ListByRegion(ctx context.Context, regionID string) ([]*billing.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	return r.query(ctx, `SELECT `+batchColumns+` FROM billing_batches WHERE region_id = $1 ORDER BY created_at ASC, id ASC`, regionID)
}

// ListSentTwoPartTariff returns the region's sent two-part-tariff batches
// with their invoices for the year.
func (r *BatchRepository) ListSentTwoPartTariff(ctx context.Context, regionID string, fy billing.FinancialYear) ([]*billing.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	batches, err := r.query(ctx, `
SELECT `+batchColumns+`
FROM billing_batches
WHERE region_id = $1 AND batch_type = $2 AND status = $3
ORDER BY created_at ASC, id ASC`, regionID, string(billing.BatchTypeTwoPartTariff), string(billing.BatchStatusSent))
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
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
	return batches, nil
}

// Delete removes a batch row.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM billing_batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBatchNotFound
	}
	return nil
}

func (r *BatchRepository) query(ctx context.Context, query string, args ...any) ([]*billing.Batch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*billing.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanBatch(row rowScanner) (*billing.Batch, error) {
	var (
		batch            billing.Batch
		batchType        string
		status           string
		startYear        int
		endYear          int
		errorCode        int
	)
	if err := row.Scan(
		&batch.ID,
		&batch.RegionID,
		&batchType,
		&startYear,
		&endYear,
		&batch.IsSummer,
		&status,
		&errorCode,
		&batch.ExternalID,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if batch.Type, err = billing.ParseBatchType(batchType); err != nil {
		return nil, err
	}
	if batch.Status, err = billing.ParseBatchStatus(status); err != nil {
		return nil, err
	}
	if batch.StartYear, err = financialYear(startYear); err != nil {
		return nil, err
	}
	if batch.EndYear, err = financialYear(endYear); err != nil {
		return nil, err
	}
	batch.ErrorCode = billing.BatchErrorCode(errorCode)
	batch.CreatedAt = batch.CreatedAt.UTC()
	batch.UpdatedAt = batch.UpdatedAt.UTC()
	return &batch, nil
}
