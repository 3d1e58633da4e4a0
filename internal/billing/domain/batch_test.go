package billing_test

import (
	"errors"
	"testing"
	"time"

	billing "abstraction-billing/internal/billing/domain"
)

func TestBatch_StatusTransitions(t *testing.T) {
	now := time.Date(2020, time.April, 3, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		from billing.BatchStatus
		to   billing.BatchStatus
		ok   bool
	}{
		{billing.BatchStatusProcessing, billing.BatchStatusReview, true},
		{billing.BatchStatusProcessing, billing.BatchStatusReady, true},
		{billing.BatchStatusProcessing, billing.BatchStatusEmpty, true},
		{billing.BatchStatusProcessing, billing.BatchStatusError, true},
		{billing.BatchStatusReview, billing.BatchStatusProcessing, true},
		{billing.BatchStatusReady, billing.BatchStatusSent, true},
		{billing.BatchStatusProcessing, billing.BatchStatusSent, false},
		{billing.BatchStatusSent, billing.BatchStatusProcessing, false},
		{billing.BatchStatusEmpty, billing.BatchStatusReady, false},
	}
	for _, tc := range cases {
		b := newBatch(t, billing.BatchTypeAnnual, false)
		b.Status = tc.from
		err := b.SetStatus(tc.to, now)
		if tc.ok && err != nil {
			t.Fatalf("%s->%s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, billing.ErrInvalidStatusTransition) {
			t.Fatalf("%s->%s: error mismatch: got=%v want=%v", tc.from, tc.to, err, billing.ErrInvalidStatusTransition)
		}
	}
}

func TestBatch_FailSetsErrorCode(t *testing.T) {
	b := newBatch(t, billing.BatchTypeAnnual, false)
	if err := b.Fail(billing.ErrorCodeFailedToProcessChargeVersions, time.Now()); err != nil {
		t.Fatalf("fail batch: %v", err)
	}
	if b.Status != billing.BatchStatusError || b.ErrorCode != billing.ErrorCodeFailedToProcessChargeVersions {
		t.Fatalf("status mismatch: got=%s/%d", b.Status, b.ErrorCode)
	}
	if !b.IsDeletable() || b.IsLive() {
		t.Fatalf("error batch should be deletable and not live")
	}
}

func TestNewBatch_Validation(t *testing.T) {
	fy := financialYear(t, 2020)
	if _, err := billing.NewBatch("b", "r", billing.BatchType("weekly"), fy, fy, false, time.Now()); err != billing.ErrInvalidBatchType {
		t.Fatalf("error mismatch: got=%v want=%v", err, billing.ErrInvalidBatchType)
	}
	if _, err := billing.NewBatch("b", "r", billing.BatchTypeAnnual, financialYear(t, 2021), fy, false, time.Now()); err != billing.ErrInvalidFinancialYearRange {
		t.Fatalf("error mismatch: got=%v want=%v", err, billing.ErrInvalidFinancialYearRange)
	}
	b, err := billing.NewBatch("b", "r", billing.BatchTypeAnnual, fy, financialYear(t, 2022), false, time.Now())
	if err != nil {
		t.Fatalf("new batch: %v", err)
	}
	if len(b.FinancialYears()) != 3 {
		t.Fatalf("years mismatch: got=%d want=3", len(b.FinancialYears()))
	}
	if b.Status != billing.BatchStatusProcessing {
		t.Fatalf("status mismatch: got=%s want=%s", b.Status, billing.BatchStatusProcessing)
	}
}

func TestInvoice_AddInvoiceLicenceMergesByUniqueID(t *testing.T) {
	b := newBatch(t, billing.BatchTypeAnnual, false)
	fy := financialYear(t, 2020)
	holder := billing.LicenceHolder{
		Company: billing.Company{ID: "company-1"},
		Contact: billing.Contact{ID: "contact-1"},
		Address: billing.Address{ID: "address-1"},
	}

	inv, err := billing.NewInvoice("inv", b.ID, billing.InvoiceAccount{ID: "account-1"}, fy)
	if err != nil {
		t.Fatalf("new invoice: %v", err)
	}
	for i, licence := range []string{"01/1", "01/1", "01/2"} {
		il, err := billing.NewInvoiceLicence("il", licence, holder)
		if err != nil {
			t.Fatalf("new invoice licence: %v", err)
		}
		il.Transactions = []*billing.Transaction{{ID: string(rune('a' + i))}}
		inv.AddInvoiceLicence(il)
	}

	if len(inv.InvoiceLicences) != 2 {
		t.Fatalf("invoice licence count mismatch: got=%d want=2", len(inv.InvoiceLicences))
	}
	if got := inv.InvoiceLicences[0].UniqueID(); got != "01/1.company-1.address-1.contact-1" {
		t.Fatalf("unique id mismatch: got=%s", got)
	}
	if got := inv.InvoiceLicences[0].InvoiceID; got != "inv" {
		t.Fatalf("invoice id mismatch: got=%s want=inv", got)
	}
	if len(inv.Transactions()) != 3 {
		t.Fatalf("transaction count mismatch: got=%d want=3", len(inv.Transactions()))
	}
}
