package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

const billingVolumeColumns = `id, batch_id, charge_element_id, financial_year_ending, is_summer,
	calculated_volume, volume, two_part_tariff_status, two_part_tariff_error, is_approved`

// BillingVolumeRepository persists two-part-tariff billing volumes.
type BillingVolumeRepository struct {
	db *sql.DB
}

// NewBillingVolumeRepository constructs a repository.
func NewBillingVolumeRepository(db *sql.DB) *BillingVolumeRepository {
	return &BillingVolumeRepository{db: db}
}

// Save upserts volumes in one transaction.
func (r *BillingVolumeRepository) Save(ctx context.Context, volumes []*billing.BillingVolume) error {
	if r == nil || r.db == nil {
		return errors.New("billing volume repo: nil db")
	}
	if len(volumes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, v := range volumes {
		if v == nil || v.ID == "" {
			_ = tx.Rollback()
			return billing.ErrEmptyID
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO billing_volumes (`+billingVolumeColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id)
DO UPDATE SET
	calculated_volume = EXCLUDED.calculated_volume,
	volume = EXCLUDED.volume,
	two_part_tariff_status = EXCLUDED.two_part_tariff_status,
	two_part_tariff_error = EXCLUDED.two_part_tariff_error,
	is_approved = EXCLUDED.is_approved`,
			v.ID, v.BatchID, v.ChargeElementID, v.FinancialYear.EndYear(), v.IsSummer,
			nullDecimal(v.CalculatedVolume), nullDecimal(v.Volume), nullStatus(v.TwoPartTariffStatus),
			v.TwoPartTariffError, v.IsApproved,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// FindForSeason returns the batch volumes for the year, season and elements.
func (r *BillingVolumeRepository) FindForSeason(ctx context.Context, batchID string, fy billing.FinancialYear, isSummer bool, chargeElementIDs []string) ([]*billing.BillingVolume, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing volume repo: nil db")
	}
	if len(chargeElementIDs) == 0 {
		return []*billing.BillingVolume{}, nil
	}
	return r.query(ctx, `
SELECT `+billingVolumeColumns+`
FROM billing_volumes
WHERE batch_id = $1 AND financial_year_ending = $2 AND is_summer = $3 AND charge_element_id = ANY($4)
ORDER BY charge_element_id ASC, id ASC`, batchID, fy.EndYear(), isSummer, chargeElementIDs)
}

// ListByBatch returns every volume of the batch.
func (r *BillingVolumeRepository) ListByBatch(ctx context.Context, batchID string) ([]*billing.BillingVolume, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing volume repo: nil db")
	}
	return r.query(ctx, `
SELECT `+billingVolumeColumns+`
FROM billing_volumes
WHERE batch_id = $1
ORDER BY charge_element_id ASC, id ASC`, batchID)
}

// CountUnapproved counts batch volumes awaiting review.
func (r *BillingVolumeRepository) CountUnapproved(ctx context.Context, batchID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("billing volume repo: nil db")
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM billing_volumes WHERE batch_id = $1 AND NOT is_approved`, batchID).Scan(&n)
	return n, err
}

// ApproveByBatch approves every volume of the batch.
func (r *BillingVolumeRepository) ApproveByBatch(ctx context.Context, batchID string) error {
	if r == nil || r.db == nil {
		return errors.New("billing volume repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `UPDATE billing_volumes SET is_approved = TRUE WHERE batch_id = $1`, batchID)
	return err
}

// DeleteByBatch removes the batch volumes.
func (r *BillingVolumeRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	if r == nil || r.db == nil {
		return errors.New("billing volume repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM billing_volumes WHERE batch_id = $1`, batchID)
	return err
}

func (r *BillingVolumeRepository) query(ctx context.Context, query string, args ...any) ([]*billing.BillingVolume, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*billing.BillingVolume, 0)
	for rows.Next() {
		var (
			v          billing.BillingVolume
			year       int
			calculated decimal.NullDecimal
			volume     decimal.NullDecimal
			status     sql.NullInt64
		)
		if err := rows.Scan(
			&v.ID,
			&v.BatchID,
			&v.ChargeElementID,
			&year,
			&v.IsSummer,
			&calculated,
			&volume,
			&status,
			&v.TwoPartTariffError,
			&v.IsApproved,
		); err != nil {
			return nil, err
		}
		if v.FinancialYear, err = financialYear(year); err != nil {
			return nil, err
		}
		v.CalculatedVolume = decimalFromNull(calculated)
		v.Volume = decimalFromNull(volume)
		v.TwoPartTariffStatus = statusFromNull(status)
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
