package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

const transactionColumns = `t.id, t.charge_element, t.charge_period_start, t.charge_period_end, t.authorised_days, t.billable_days,
	t.volume, t.is_credit, t.is_compensation_charge, t.is_two_part_tariff_supplementary, t.agreements, t.status,
	t.description, t.two_part_tariff_status, t.two_part_tariff_error, t.calculated_volume, t.external_id`

// InvoiceRepository persists invoices, invoice licences and transactions.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Save merges invoice into the stored invoice of the same batch, account and year.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	if invoice.BatchID == "" {
		return billing.ErrEmptyID
	}
	company, err := encodeCompany(invoice.InvoiceAccount.Company)
	if err != nil {
		return err
	}
	address, err := encodeAddress(invoice.InvoiceAccount.Address)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var invoiceID string
	if err := tx.QueryRowContext(ctx, `
INSERT INTO billing_invoices (id, batch_id, invoice_account_id, invoice_account_number, company, address, financial_year_ending)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (batch_id, invoice_account_id, financial_year_ending)
DO UPDATE SET
	invoice_account_number = EXCLUDED.invoice_account_number,
	company = EXCLUDED.company,
	address = EXCLUDED.address
RETURNING id`,
		invoice.ID, invoice.BatchID, invoice.InvoiceAccount.ID, invoice.InvoiceAccount.AccountNumber,
		company, address, invoice.FinancialYear.EndYear(),
	).Scan(&invoiceID); err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, il := range invoice.InvoiceLicences {
		if err := saveInvoiceLicence(ctx, tx, invoiceID, il); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func saveInvoiceLicence(ctx context.Context, tx *sql.Tx, invoiceID string, il *billing.InvoiceLicence) error {
	var (
		storedID string
		replace  bool
	)
	err := tx.QueryRowContext(ctx, `SELECT id FROM billing_invoice_licences WHERE id = $1 AND invoice_id = $2`, il.ID, invoiceID).Scan(&storedID)
	switch {
	case err == nil:
		replace = true
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, `SELECT id FROM billing_invoice_licences WHERE invoice_id = $1 AND unique_key = $2`, invoiceID, il.UniqueID()).Scan(&storedID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	default:
		return err
	}

	if storedID == "" {
		company, err := encodeCompany(il.Company)
		if err != nil {
			return err
		}
		contact, err := encodeContact(il.Contact)
		if err != nil {
			return err
		}
		address, err := encodeAddress(il.Address)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO billing_invoice_licences (id, invoice_id, licence_number, unique_key, company, contact, address)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			il.ID, invoiceID, il.LicenceNumber, il.UniqueID(), company, contact, address,
		); err != nil {
			return err
		}
		storedID = il.ID
	}
	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM billing_transactions WHERE invoice_licence_id = $1`, storedID); err != nil {
			return err
		}
	}
	for _, t := range il.Transactions {
		if err := upsertTransaction(ctx, tx, storedID, t); err != nil {
			return err
		}
	}
	return nil
}

func upsertTransaction(ctx context.Context, tx *sql.Tx, invoiceLicenceID string, t *billing.Transaction) error {
	element, err := encodeElement(t.ChargeElement)
	if err != nil {
		return err
	}
	agreements, err := encodeAgreements(t.Agreements)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO billing_transactions (
	id, invoice_licence_id, charge_element, charge_period_start, charge_period_end, authorised_days, billable_days,
	volume, is_credit, is_compensation_charge, is_two_part_tariff_supplementary, agreements, status,
	description, two_part_tariff_status, two_part_tariff_error, calculated_volume, external_id
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id)
DO UPDATE SET
	invoice_licence_id = EXCLUDED.invoice_licence_id,
	volume = EXCLUDED.volume,
	status = EXCLUDED.status,
	description = EXCLUDED.description,
	two_part_tariff_status = EXCLUDED.two_part_tariff_status,
	two_part_tariff_error = EXCLUDED.two_part_tariff_error,
	calculated_volume = EXCLUDED.calculated_volume,
	external_id = EXCLUDED.external_id`,
		t.ID, invoiceLicenceID, element, billing.Date(t.ChargePeriod.Start), billing.Date(t.ChargePeriod.End),
		t.AuthorisedDays, t.BillableDays, nullDecimal(t.Volume), t.IsCredit, t.IsCompensationCharge,
		t.IsTwoPartTariffSupplementary, agreements, string(t.Status), t.Description,
		nullStatus(t.TwoPartTariffStatus), t.TwoPartTariffError, nullDecimal(t.CalculatedVolume), t.ExternalID,
	)
	return err
}

// ListByBatch loads the batch invoices with their licences and transactions.
func (r *InvoiceRepository) ListByBatch(ctx context.Context, batchID string) ([]*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, invoice_account_id, invoice_account_number, company, address, financial_year_ending
FROM billing_invoices
WHERE batch_id = $1
ORDER BY financial_year_ending ASC, invoice_account_number ASC, id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	invoices := make([]*billing.Invoice, 0)
	byID := make(map[string]*billing.Invoice)
	for rows.Next() {
		var (
			inv     billing.Invoice
			company []byte
			address []byte
			year    int
		)
		if err := rows.Scan(&inv.ID, &inv.BatchID, &inv.InvoiceAccount.ID, &inv.InvoiceAccount.AccountNumber, &company, &address, &year); err != nil {
			rows.Close()
			return nil, err
		}
		if inv.InvoiceAccount.Company, err = decodeCompany(company); err != nil {
			rows.Close()
			return nil, err
		}
		if inv.InvoiceAccount.Address, err = decodeAddress(address); err != nil {
			rows.Close()
			return nil, err
		}
		if inv.FinancialYear, err = financialYear(year); err != nil {
			rows.Close()
			return nil, err
		}
		invoices = append(invoices, &inv)
		byID[inv.ID] = &inv
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(invoices) == 0 {
		return invoices, nil
	}

	licences, err := r.loadInvoiceLicences(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, il := range licences {
		if inv := byID[il.InvoiceID]; inv != nil {
			inv.InvoiceLicences = append(inv.InvoiceLicences, il)
		}
	}
	return invoices, nil
}

func (r *InvoiceRepository) loadInvoiceLicences(ctx context.Context, batchID string) ([]*billing.InvoiceLicence, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT il.id, il.invoice_id, il.licence_number, il.company, il.contact, il.address
FROM billing_invoice_licences il
JOIN billing_invoices i ON i.id = il.invoice_id
WHERE i.batch_id = $1
ORDER BY il.licence_number ASC, il.id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	var licences []*billing.InvoiceLicence
	byID := make(map[string]*billing.InvoiceLicence)
	for rows.Next() {
		var (
			il                        billing.InvoiceLicence
			company, contact, address []byte
		)
		if err := rows.Scan(&il.ID, &il.InvoiceID, &il.LicenceNumber, &company, &contact, &address); err != nil {
			rows.Close()
			return nil, err
		}
		if il.Company, err = decodeCompany(company); err == nil {
			if il.Contact, err = decodeContact(contact); err == nil {
				il.Address, err = decodeAddress(address)
			}
		}
		if err != nil {
			rows.Close()
			return nil, err
		}
		licences = append(licences, &il)
		byID[il.ID] = &il
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	txRows, err := r.db.QueryContext(ctx, `
SELECT t.invoice_licence_id, `+transactionColumns+`
FROM billing_transactions t
JOIN billing_invoice_licences il ON il.id = t.invoice_licence_id
JOIN billing_invoices i ON i.id = il.invoice_id
WHERE i.batch_id = $1
ORDER BY t.charge_period_start ASC, t.id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer txRows.Close()
	for txRows.Next() {
		var invoiceLicenceID string
		t, err := scanTransaction(txRows, &invoiceLicenceID)
		if err != nil {
			return nil, err
		}
		if il := byID[invoiceLicenceID]; il != nil {
			il.Transactions = append(il.Transactions, t)
		}
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}
	return licences, nil
}

// DeleteByBatch removes the batch invoices. Licences and transactions cascade.
func (r *InvoiceRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM billing_invoices WHERE batch_id = $1`, batchID)
	return err
}

func scanTransaction(row rowScanner, prefix ...any) (*billing.Transaction, error) {
	var (
		t          billing.Transaction
		element    []byte
		start      time.Time
		end        time.Time
		volume     decimal.NullDecimal
		agreements []byte
		status     string
		tptStatus  sql.NullInt64
		calculated decimal.NullDecimal
	)
	dest := append(prefix,
		&t.ID,
		&element,
		&start,
		&end,
		&t.AuthorisedDays,
		&t.BillableDays,
		&volume,
		&t.IsCredit,
		&t.IsCompensationCharge,
		&t.IsTwoPartTariffSupplementary,
		&agreements,
		&status,
		&t.Description,
		&tptStatus,
		&t.TwoPartTariffError,
		&calculated,
		&t.ExternalID,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if t.ChargeElement, err = decodeElement(element); err != nil {
		return nil, err
	}
	if t.Agreements, err = decodeAgreements(agreements); err != nil {
		return nil, err
	}
	if t.Status, err = billing.ParseTransactionStatus(status); err != nil {
		return nil, err
	}
	t.ChargePeriod = billing.DateRange{Start: billing.Date(start), End: billing.Date(end)}
	t.Volume = decimalFromNull(volume)
	t.CalculatedVolume = decimalFromNull(calculated)
	t.TwoPartTariffStatus = statusFromNull(tptStatus)
	return &t, nil
}

// TransactionRepository queries transactions across batches.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListSent returns the licence's transactions for the year in sent batches,
// oldest batch first.
func (r *TransactionRepository) ListSent(ctx context.Context, licenceNumber string, fy billing.FinancialYear) ([]*billing.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+transactionColumns+`
FROM billing_transactions t
JOIN billing_invoice_licences il ON il.id = t.invoice_licence_id
JOIN billing_invoices i ON i.id = il.invoice_id
JOIN billing_batches b ON b.id = i.batch_id
WHERE il.licence_number = $1 AND i.financial_year_ending = $2 AND b.status = $3
ORDER BY b.created_at ASC, b.id ASC, t.charge_period_start ASC, t.id ASC`,
		licenceNumber, fy.EndYear(), string(billing.BatchStatusSent),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*billing.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
