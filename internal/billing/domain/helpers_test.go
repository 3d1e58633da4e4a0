package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := billing.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func dateRange(t *testing.T, start, end string) billing.DateRange {
	t.Helper()
	r, err := billing.NewDateRange(date(t, start), date(t, end))
	if err != nil {
		t.Fatalf("date range %s..%s: %v", start, end, err)
	}
	return r
}

func financialYear(t *testing.T, ending int) billing.FinancialYear {
	t.Helper()
	fy, err := billing.NewFinancialYear(ending)
	if err != nil {
		t.Fatalf("financial year %d: %v", ending, err)
	}
	return fy
}

func agreement(t *testing.T, id, code, start, end string) billing.LicenceAgreement {
	t.Helper()
	a, err := billing.NewAgreement(code)
	if err != nil {
		t.Fatalf("agreement %s: %v", code, err)
	}
	la, err := billing.NewLicenceAgreement(id, a, dateRange(t, start, end))
	if err != nil {
		t.Fatalf("licence agreement %s: %v", id, err)
	}
	return la
}

func element(id string, season billing.Season, twoPartTariff bool) billing.ChargeElement {
	return billing.ChargeElement{
		ID:                       id,
		Source:                   "unsupported",
		Season:                   season,
		Loss:                     "low",
		AbstractionPeriod:        billing.AllYear(),
		AuthorisedAnnualQuantity: decimal.NewFromInt(100),
		Purpose: billing.Purpose{
			Code:            "400",
			Description:     "Spray Irrigation - Direct",
			IsTwoPartTariff: twoPartTariff,
		},
		Description: "Borehole at Test Farm",
	}
}

type chargeVersionOption func(*billing.ChargeVersion)

func withLicenceEnd(t *testing.T, end string) chargeVersionOption {
	return func(cv *billing.ChargeVersion) {
		cv.Licence.DateRange.End = date(t, end)
	}
}

func withUndertaker() chargeVersionOption {
	return func(cv *billing.ChargeVersion) { cv.Licence.IsWaterUndertaker = true }
}

func withAgreements(agreements ...billing.LicenceAgreement) chargeVersionOption {
	return func(cv *billing.ChargeVersion) { cv.Licence.Agreements = agreements }
}

func withElements(elements ...billing.ChargeElement) chargeVersionOption {
	return func(cv *billing.ChargeVersion) { cv.Elements = elements }
}

func withValidity(t *testing.T, start, end string) chargeVersionOption {
	return func(cv *billing.ChargeVersion) { cv.DateRange = dateRange(t, start, end) }
}

func chargeVersion(t *testing.T, opts ...chargeVersionOption) *billing.ChargeVersion {
	t.Helper()
	cv := billing.ChargeVersion{
		ID: "cv-1",
		Licence: billing.Licence{
			LicenceNumber: "01/123/R01",
			RegionID:      "region-1",
			DateRange:     dateRange(t, "2000-01-01", ""),
		},
		VersionNumber:    1,
		DateRange:        dateRange(t, "2010-01-01", ""),
		Status:           billing.ChargeVersionStatusCurrent,
		Scheme:           "alcs",
		CompanyID:        "company-1",
		InvoiceAccountID: "account-1",
		Elements:         []billing.ChargeElement{element("element-1", billing.SeasonAllYear, false)},
	}
	for _, opt := range opts {
		opt(&cv)
	}
	result, err := billing.NewChargeVersion(cv)
	if err != nil {
		t.Fatalf("new charge version: %v", err)
	}
	return result
}

func newBatch(t *testing.T, batchType billing.BatchType, isSummer bool) *billing.Batch {
	t.Helper()
	fy := financialYear(t, 2020)
	b, err := billing.NewBatch("batch-1", "region-1", batchType, fy, fy, isSummer, time.Date(2020, time.April, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new batch: %v", err)
	}
	return b
}

func sentTwoPartTariffBatch(t *testing.T, isSummer bool, licenceNumbers ...string) *billing.Batch {
	t.Helper()
	b := newBatch(t, billing.BatchTypeTwoPartTariff, isSummer)
	b.ID = "sent-tpt"
	b.Status = billing.BatchStatusSent
	inv, err := billing.NewInvoice("inv-sent", b.ID, billing.InvoiceAccount{ID: "account-1"}, financialYear(t, 2020))
	if err != nil {
		t.Fatalf("new invoice: %v", err)
	}
	for _, n := range licenceNumbers {
		il, err := billing.NewInvoiceLicence("il-"+n, n, billing.LicenceHolder{})
		if err != nil {
			t.Fatalf("new invoice licence: %v", err)
		}
		inv.AddInvoiceLicence(il)
	}
	b.Invoices = []*billing.Invoice{inv}
	return b
}

func ml(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
