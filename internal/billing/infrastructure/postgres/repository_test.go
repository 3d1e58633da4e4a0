package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
	billingrepo "abstraction-billing/internal/billing/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, table := range []string{
		"billing_batches",
		"billing_charge_versions",
		"billing_batch_charge_version_years",
		"billing_volumes",
		"billing_invoices",
		"billing_invoice_licences",
		"billing_transactions",
	} {
		if !tableExists(db, table) {
			t.Skip("missing tables; run migrations")
		}
	}
	return db
}

func TestBatchAndChargeVersionYears(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	batchID := "pg-batch-1"
	cleanupBatch(t, db, batchID)

	fy, _ := billing.NewFinancialYear(2020)
	now := time.Date(2020, time.May, 1, 9, 0, 0, 0, time.UTC)
	batch, err := billing.NewBatch(batchID, "pg-region", billing.BatchTypeAnnual, fy, fy, false, now)
	if err != nil {
		t.Fatalf("new batch: %v", err)
	}

	batches := billingrepo.NewBatchRepository(db)
	if err := batches.Save(ctx, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	if err := batch.SetStatus(billing.BatchStatusReady, now); err != nil {
		t.Fatalf("set status: %v", err)
	}
	batch.ExternalID = "ledger-1"
	if err := batches.Save(ctx, batch); err != nil {
		t.Fatalf("update batch: %v", err)
	}
	loaded, err := batches.FindByID(ctx, batchID)
	if err != nil {
		t.Fatalf("find batch: %v", err)
	}
	if loaded.Status != billing.BatchStatusReady || loaded.ExternalID != "ledger-1" || loaded.StartYear != fy {
		t.Fatalf("batch mismatch: %+v", loaded)
	}

	rows := billingrepo.NewChargeVersionYearRepository(db)
	for _, id := range []string{"pg-cvy-1", "pg-cvy-2"} {
		cvy, err := billing.NewChargeVersionYear(id, batchID, "pg-cv", fy, now)
		if err != nil {
			t.Fatalf("new cvy: %v", err)
		}
		if err := rows.Insert(ctx, cvy); err != nil {
			t.Fatalf("insert cvy: %v", err)
		}
	}
	if err := rows.SetStatus(ctx, "pg-cvy-1", billing.ChargeVersionYearStatusReady, now); err != nil {
		t.Fatalf("set cvy status: %v", err)
	}
	counts, err := rows.CountByStatus(ctx, batchID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts.Ready != 1 || counts.Processing != 1 || counts.Total() != 2 {
		t.Fatalf("counts mismatch: %+v", counts)
	}
	if err := rows.SetStatus(ctx, "pg-missing", billing.ChargeVersionYearStatusReady, now); err != billing.ErrChargeVersionYearNotFound {
		t.Fatalf("missing row: got=%v want=%v", err, billing.ErrChargeVersionYearNotFound)
	}

	if err := batches.Delete(ctx, batchID); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if _, err := batches.FindByID(ctx, batchID); err != billing.ErrBatchNotFound {
		t.Fatalf("deleted batch: got=%v want=%v", err, billing.ErrBatchNotFound)
	}
}

func TestChargeVersionRoundTrip(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_charge_versions WHERE id = $1", "pg-cv-1")

	billable := decimal.RequireFromString("12.5")
	s127, _ := billing.NewAgreement(billing.AgreementCodeTwoPartTariff)
	la, err := billing.NewLicenceAgreement("pg-la-1", s127, billing.MustDateRange(billing.NewDate(2000, time.April, 1), time.Time{}))
	if err != nil {
		t.Fatalf("licence agreement: %v", err)
	}
	cv, err := billing.NewChargeVersion(billing.ChargeVersion{
		ID: "pg-cv-1",
		Licence: billing.Licence{
			LicenceNumber: "01/PG/R01",
			RegionID:      "pg-region",
			DateRange:     billing.MustDateRange(billing.NewDate(2000, time.April, 1), billing.NewDate(2019, time.June, 30)),
			Agreements:    []billing.LicenceAgreement{la},
		},
		VersionNumber:    2,
		DateRange:        billing.MustDateRange(billing.NewDate(2015, time.April, 1), time.Time{}),
		Status:           billing.ChargeVersionStatusCurrent,
		InvoiceAccountID: "pg-account",
		Elements: []billing.ChargeElement{{
			ID:                       "pg-element-1",
			Source:                   "supported",
			Season:                   billing.SeasonSummer,
			Loss:                     "high",
			AbstractionPeriod:        billing.AbstractionPeriod{StartDay: 1, StartMonth: time.April, EndDay: 31, EndMonth: time.October},
			AuthorisedAnnualQuantity: decimal.NewFromInt(50),
			BillableAnnualQuantity:   &billable,
			Purpose:                  billing.Purpose{Code: "420", IsTwoPartTariff: true},
		}},
	})
	if err != nil {
		t.Fatalf("new charge version: %v", err)
	}

	repo := billingrepo.NewChargeVersionRepository(db)
	if err := repo.Save(ctx, cv); err != nil {
		t.Fatalf("save: %v", err)
	}
	fy, _ := billing.NewFinancialYear(2020)
	listed, err := repo.ListByRegion(ctx, "pg-region", fy.DateRange())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got *billing.ChargeVersion
	for _, item := range listed {
		if item.ID == cv.ID {
			got = item
		}
	}
	if got == nil {
		t.Fatalf("charge version not listed")
	}
	if !got.Licence.DateRange.Equal(cv.Licence.DateRange) || !got.DateRange.Equal(cv.DateRange) {
		t.Fatalf("date range mismatch: got=%v want=%v", got.Licence.DateRange, cv.Licence.DateRange)
	}
	if len(got.Licence.Agreements) != 1 || got.Licence.Agreements[0].Agreement.Code != billing.AgreementCodeTwoPartTariff {
		t.Fatalf("agreements mismatch: %+v", got.Licence.Agreements)
	}
	element := got.Elements[0]
	if element.Season != billing.SeasonSummer || element.BillableAnnualQuantity == nil || !element.BillableAnnualQuantity.Equal(billable) {
		t.Fatalf("element mismatch: %+v", element)
	}
	if element.AbstractionPeriod != cv.Elements[0].AbstractionPeriod {
		t.Fatalf("abstraction period mismatch: got=%+v want=%+v", element.AbstractionPeriod, cv.Elements[0].AbstractionPeriod)
	}
}

func TestInvoiceMergeAndSentTransactions(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	batchID := "pg-batch-2"
	cleanupBatch(t, db, batchID)

	fy, _ := billing.NewFinancialYear(2020)
	now := time.Date(2020, time.May, 1, 9, 0, 0, 0, time.UTC)
	batch, _ := billing.NewBatch(batchID, "pg-region-2", billing.BatchTypeAnnual, fy, fy, false, now)
	batches := billingrepo.NewBatchRepository(db)
	if err := batches.Save(ctx, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	account := billing.InvoiceAccount{ID: "pg-account", AccountNumber: "A00000001A", Company: billing.Company{ID: "c1", Name: "Pg Ltd"}}
	holder := billing.LicenceHolder{Company: billing.Company{ID: "c1"}, Contact: billing.Contact{ID: "p1"}, Address: billing.Address{ID: "a1"}}
	transaction := func(id string) *billing.Transaction {
		volume := decimal.NewFromInt(10)
		return &billing.Transaction{
			ID: id,
			ChargeElement: billing.ChargeElement{
				ID: "pg-element", Season: billing.SeasonAllYear, AbstractionPeriod: billing.AllYear(),
				AuthorisedAnnualQuantity: volume,
			},
			ChargePeriod:   fy.DateRange(),
			AuthorisedDays: 366,
			BillableDays:   366,
			Volume:         &volume,
			Status:         billing.TransactionStatusCandidate,
		}
	}
	save := func(invoiceID, licenceID string, transactions ...*billing.Transaction) {
		t.Helper()
		inv, _ := billing.NewInvoice(invoiceID, batchID, account, fy)
		il, _ := billing.NewInvoiceLicence(licenceID, "01/PG/R02", holder)
		il.Transactions = transactions
		inv.AddInvoiceLicence(il)
		if err := billingrepo.NewInvoiceRepository(db).Save(ctx, inv); err != nil {
			t.Fatalf("save invoice: %v", err)
		}
	}
	save("pg-inv-1", "pg-il-1", transaction("pg-t-1"))
	save("pg-inv-2", "pg-il-2", transaction("pg-t-2"))
	save("pg-inv-3", "pg-il-1", transaction("pg-t-3"))

	invoices, err := billingrepo.NewInvoiceRepository(db).ListByBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 1 || len(invoices[0].InvoiceLicences) != 1 {
		t.Fatalf("invoice merge mismatch: %+v", invoices)
	}
	got := invoices[0].Transactions()
	if len(got) != 1 || got[0].ID != "pg-t-3" {
		t.Fatalf("replaced transactions mismatch: %+v", got)
	}

	if err := batch.SetStatus(billing.BatchStatusReady, now); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := batch.SetStatus(billing.BatchStatusSent, now); err != nil {
		t.Fatalf("sent: %v", err)
	}
	if err := batches.Save(ctx, batch); err != nil {
		t.Fatalf("save sent batch: %v", err)
	}
	sent, err := billingrepo.NewTransactionRepository(db).ListSent(ctx, "01/PG/R02", fy)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 1 || sent[0].Volume == nil || !sent[0].Volume.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("sent mismatch: %+v", sent)
	}
}

func cleanupBatch(t *testing.T, db *sql.DB, batchID string) {
	t.Helper()
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_invoices WHERE batch_id = $1", batchID)
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_batch_charge_version_years WHERE batch_id = $1", batchID)
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_batches WHERE id = $1", batchID)
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, name).Scan(&exists)
	return err == nil && exists
}
