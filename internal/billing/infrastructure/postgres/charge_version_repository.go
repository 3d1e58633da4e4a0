package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "abstraction-billing/internal/billing/domain"
)

const chargeVersionColumns = `id, licence_number, region_id, licence_start, licence_end, is_water_undertaker,
	version_number, start_date, end_date, status, scheme, company_id, invoice_account_id, agreements, elements`

// ChargeVersionRepository reads charge versions with their licence and elements.
type ChargeVersionRepository struct {
	db *sql.DB
}

// NewChargeVersionRepository constructs a repository.
func NewChargeVersionRepository(db *sql.DB) *ChargeVersionRepository {
	return &ChargeVersionRepository{db: db}
}

// Save upserts a charge version.
func (r *ChargeVersionRepository) Save(ctx context.Context, cv *billing.ChargeVersion) error {
	if r == nil || r.db == nil {
		return errors.New("charge version repo: nil db")
	}
	if cv == nil {
		return billing.ErrNilChargeVersion
	}
	agreements, err := encodeLicenceAgreements(cv.Licence.Agreements)
	if err != nil {
		return err
	}
	elements, err := encodeElements(cv.Elements)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO billing_charge_versions (`+chargeVersionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id)
DO UPDATE SET
	licence_number = EXCLUDED.licence_number,
	region_id = EXCLUDED.region_id,
	licence_start = EXCLUDED.licence_start,
	licence_end = EXCLUDED.licence_end,
	is_water_undertaker = EXCLUDED.is_water_undertaker,
	version_number = EXCLUDED.version_number,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	status = EXCLUDED.status,
	scheme = EXCLUDED.scheme,
	company_id = EXCLUDED.company_id,
	invoice_account_id = EXCLUDED.invoice_account_id,
	agreements = EXCLUDED.agreements,
	elements = EXCLUDED.elements`,
		cv.ID, cv.Licence.LicenceNumber, cv.Licence.RegionID,
		billing.Date(cv.Licence.DateRange.Start), nullDate(cv.Licence.DateRange.End), cv.Licence.IsWaterUndertaker,
		cv.VersionNumber, billing.Date(cv.DateRange.Start), nullDate(cv.DateRange.End),
		string(cv.Status), cv.Scheme, cv.CompanyID, cv.InvoiceAccountID, agreements, elements,
	)
	return err
}

// FindByID loads a charge version.
func (r *ChargeVersionRepository) FindByID(ctx context.Context, id string) (*billing.ChargeVersion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("charge version repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+chargeVersionColumns+` FROM billing_charge_versions WHERE id = $1`, id)
	cv, err := scanChargeVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrChargeVersionNotFound
	}
	return cv, err
}

// ListByRegion returns charge versions in the region overlapping period,
// ordered by licence number and version number.
func (r *ChargeVersionRepository) ListByRegion(ctx context.Context, regionID string, period billing.DateRange) ([]*billing.ChargeVersion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("charge version repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chargeVersionColumns+`
FROM billing_charge_versions
WHERE region_id = $1
	AND ($3::date IS NULL OR start_date <= $3)
	AND (end_date IS NULL OR end_date >= $2)
ORDER BY licence_number ASC, version_number ASC`,
		regionID, billing.Date(period.Start), nullDate(period.End),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*billing.ChargeVersion, 0)
	for rows.Next() {
		cv, err := scanChargeVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanChargeVersion(row rowScanner) (*billing.ChargeVersion, error) {
	var (
		cv           billing.ChargeVersion
		licenceStart time.Time
		licenceEnd   sql.NullTime
		start        time.Time
		end          sql.NullTime
		status       string
		agreements   []byte
		elements     []byte
	)
	if err := row.Scan(
		&cv.ID,
		&cv.Licence.LicenceNumber,
		&cv.Licence.RegionID,
		&licenceStart,
		&licenceEnd,
		&cv.Licence.IsWaterUndertaker,
		&cv.VersionNumber,
		&start,
		&end,
		&status,
		&cv.Scheme,
		&cv.CompanyID,
		&cv.InvoiceAccountID,
		&agreements,
		&elements,
	); err != nil {
		return nil, err
	}
	var err error
	if cv.Licence.Agreements, err = decodeLicenceAgreements(agreements); err != nil {
		return nil, err
	}
	if cv.Elements, err = decodeElements(elements); err != nil {
		return nil, err
	}
	cv.Status = billing.ChargeVersionStatus(status)
	cv.Licence.DateRange = billing.DateRange{Start: billing.Date(licenceStart), End: dateFromNull(licenceEnd)}
	cv.DateRange = billing.DateRange{Start: billing.Date(start), End: dateFromNull(end)}
	return billing.NewChargeVersion(cv)
}

// ChargeVersionYearRepository persists batch work items.
type ChargeVersionYearRepository struct {
	db *sql.DB
}

// NewChargeVersionYearRepository constructs a repository.
func NewChargeVersionYearRepository(db *sql.DB) *ChargeVersionYearRepository {
	return &ChargeVersionYearRepository{db: db}
}

// Insert stores a new row.
func (r *ChargeVersionYearRepository) Insert(ctx context.Context, cvy *billing.ChargeVersionYear) error {
	if r == nil || r.db == nil {
		return errors.New("charge version year repo: nil db")
	}
	if cvy == nil || cvy.ID == "" {
		return billing.ErrEmptyID
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO billing_batch_charge_version_years (id, batch_id, charge_version_id, financial_year_ending, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		cvy.ID, cvy.BatchID, cvy.ChargeVersionID, cvy.FinancialYear.EndYear(), string(cvy.Status),
		cvy.CreatedAt.UTC(), cvy.UpdatedAt.UTC(),
	)
	return err
}

// FindByID loads a row.
func (r *ChargeVersionYearRepository) FindByID(ctx context.Context, id string) (*billing.ChargeVersionYear, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("charge version year repo: nil db")
	}
	var (
		cvy    billing.ChargeVersionYear
		year   int
		status string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, batch_id, charge_version_id, financial_year_ending, status, created_at, updated_at
FROM billing_batch_charge_version_years
WHERE id = $1`, id).Scan(&cvy.ID, &cvy.BatchID, &cvy.ChargeVersionID, &year, &status, &cvy.CreatedAt, &cvy.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrChargeVersionYearNotFound
	}
	if err != nil {
		return nil, err
	}
	if cvy.FinancialYear, err = financialYear(year); err != nil {
		return nil, err
	}
	if cvy.Status, err = billing.ParseChargeVersionYearStatus(status); err != nil {
		return nil, err
	}
	cvy.CreatedAt = cvy.CreatedAt.UTC()
	cvy.UpdatedAt = cvy.UpdatedAt.UTC()
	return &cvy, nil
}

// SetStatus updates the row status.
func (r *ChargeVersionYearRepository) SetStatus(ctx context.Context, id string, status billing.ChargeVersionYearStatus, now time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("charge version year repo: nil db")
	}
	if _, err := billing.ParseChargeVersionYearStatus(string(status)); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE billing_batch_charge_version_years
SET status = $2, updated_at = $3
WHERE id = $1`, id, string(status), now.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrChargeVersionYearNotFound
	}
	return nil
}

// CountByStatus counts the batch rows per status.
func (r *ChargeVersionYearRepository) CountByStatus(ctx context.Context, batchID string) (billing.StatusCounts, error) {
	var counts billing.StatusCounts
	if r == nil || r.db == nil {
		return counts, errors.New("charge version year repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM billing_batch_charge_version_years
WHERE batch_id = $1
GROUP BY status`, batchID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		counts.Add(billing.ChargeVersionYearStatus(status), n)
	}
	return counts, rows.Err()
}

// DeleteByBatch removes the batch rows.
func (r *ChargeVersionYearRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	if r == nil || r.db == nil {
		return errors.New("charge version year repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM billing_batch_charge_version_years WHERE batch_id = $1`, batchID)
	return err
}
