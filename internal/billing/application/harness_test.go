package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"abstraction-billing/internal/billing/application"
	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/billing/infrastructure/memory"
	"abstraction-billing/internal/jobqueue"
	jobmemory "abstraction-billing/internal/jobqueue/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%04d", s.n)
}

type stubDirectory struct {
	err error
}

func (d stubDirectory) GetInvoiceAccount(ctx context.Context, id string) (billing.InvoiceAccount, error) {
	if d.err != nil {
		return billing.InvoiceAccount{}, d.err
	}
	return billing.InvoiceAccount{
		ID:            id,
		AccountNumber: "A12345678A",
		Company:       billing.Company{ID: "company-1", Name: "Test Farms Ltd"},
		Address:       billing.Address{ID: "address-1", Lines: []string{"1 Test Lane"}, Town: "Testington", Postcode: "TT1 1TT"},
	}, nil
}

func (d stubDirectory) GetLicenceHolder(ctx context.Context, licenceNumber string, at time.Time) (billing.LicenceHolder, error) {
	if d.err != nil {
		return billing.LicenceHolder{}, d.err
	}
	return billing.LicenceHolder{
		Company: billing.Company{ID: "company-1", Name: "Test Farms Ltd"},
		Contact: billing.Contact{ID: "contact-1", FirstName: "Jo", LastName: "Bloggs"},
		Address: billing.Address{ID: "address-1", Lines: []string{"1 Test Lane"}, Town: "Testington", Postcode: "TT1 1TT"},
	}, nil
}

type stubReturns struct {
	returns []billing.Return
	calls   int
	mu      sync.Mutex
}

func (s *stubReturns) ListReturns(ctx context.Context, licenceNumber string, fy billing.FinancialYear, isSummer bool) ([]billing.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var result []billing.Return
	for _, r := range s.returns {
		if r.LicenceNumber == licenceNumber && r.IsSummer == isSummer {
			result = append(result, r)
		}
	}
	return result, nil
}

type stubLedger struct {
	mu          sync.Mutex
	submissions map[string][]*billing.Transaction
	err         error
}

func (l *stubLedger) SubmitBatch(ctx context.Context, batch *billing.Batch, transactions []*billing.Transaction) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submissions == nil {
		l.submissions = make(map[string][]*billing.Transaction)
	}
	l.submissions[batch.ID] = transactions
	return "ledger-" + batch.ID, nil
}

type stubReports struct {
	published []string
}

func (r *stubReports) PublishBatchReport(ctx context.Context, batch *billing.Batch, invoices []*billing.Invoice) error {
	r.published = append(r.published, batch.ID)
	return nil
}

type harness struct {
	batches        *memory.BatchRepository
	chargeVersions *memory.ChargeVersionRepository
	rows           *memory.ChargeVersionYearRepository
	volumes        *memory.BillingVolumeRepository
	invoices       *memory.InvoiceRepository
	transactions   *memory.TransactionRepository
	jobs           *jobmemory.JobStore
	dlq            *jobmemory.DLQStore
	queue          *jobqueue.Queue
	worker         *jobqueue.Worker
	directory      *stubDirectory
	returns        *stubReturns
	ledger         *stubLedger
	reports        *stubReports
	pipeline       *application.Pipeline
	service        *application.BatchService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	clock := fixedClock{now: time.Date(2020, time.May, 1, 9, 0, 0, 0, time.UTC)}
	ids := &sequenceIDs{}

	h := &harness{
		invoices:       memory.NewInvoiceRepository(),
		chargeVersions: memory.NewChargeVersionRepository(),
		rows:           memory.NewChargeVersionYearRepository(),
		volumes:        memory.NewBillingVolumeRepository(),
		jobs:           jobmemory.NewJobStore(),
		dlq:            jobmemory.NewDLQStore(),
		directory:      &stubDirectory{},
		returns:        &stubReturns{},
		ledger:         &stubLedger{},
		reports:        &stubReports{},
	}
	h.batches = memory.NewBatchRepository(h.invoices)
	h.transactions = memory.NewTransactionRepository(h.batches, h.invoices)

	queue, err := jobqueue.NewQueue(h.jobs, clock, logger)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	h.queue = queue
	h.worker, err = jobqueue.NewWorker(h.jobs, h.dlq, clock, logger, jobqueue.WorkerConfig{Concurrency: 4, BatchSize: 20})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	tpt, err := application.NewTwoPartTariffService(h.volumes, h.returns, nil, ids.next, logger)
	if err != nil {
		t.Fatalf("new two-part tariff service: %v", err)
	}
	processor, err := application.NewChargeVersionYearService(h.batches, h.chargeVersions, h.directory, tpt, ids.next, logger)
	if err != nil {
		t.Fatalf("new charge version year service: %v", err)
	}
	preparer, err := application.NewTransactionPreparer(h.batches, h.invoices, h.volumes, h.transactions, h.ledger, h.reports, clock, ids.next, logger)
	if err != nil {
		t.Fatalf("new transaction preparer: %v", err)
	}
	h.pipeline, err = application.NewPipeline(application.PipelineDeps{
		Batches:        h.batches,
		ChargeVersions: h.chargeVersions,
		Rows:           h.rows,
		Volumes:        h.volumes,
		Invoices:       h.invoices,
		Processor:      processor,
		Preparer:       preparer,
		Queue:          queue,
		Clock:          clock,
		NewID:          ids.next,
		Logger:         logger,
	}, application.PipelineConfig{})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	h.pipeline.Register(h.worker)

	h.service, err = application.NewBatchService(h.batches, h.rows, h.volumes, h.invoices, queue, clock, ids.next, logger)
	if err != nil {
		t.Fatalf("new batch service: %v", err)
	}
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	if _, err := h.worker.Drain(context.Background(), 20); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func (h *harness) createBatch(t *testing.T, batchType billing.BatchType, year int, isSummer bool) *billing.Batch {
	t.Helper()
	batch, err := h.service.CreateBatch(context.Background(), application.CreateBatchCommand{
		RegionID:  "region-1",
		Type:      batchType,
		StartYear: year,
		EndYear:   year,
		IsSummer:  isSummer,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return batch
}

func (h *harness) batch(t *testing.T, id string) *billing.Batch {
	t.Helper()
	batch, err := h.service.GetBatch(context.Background(), id)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	return batch
}

func (h *harness) saveChargeVersion(t *testing.T, cv *billing.ChargeVersion) {
	t.Helper()
	if err := h.chargeVersions.Save(context.Background(), cv); err != nil {
		t.Fatalf("save charge version: %v", err)
	}
}

func (h *harness) pendingJobs() []jobqueue.Job {
	var pending []jobqueue.Job
	for _, job := range h.jobs.List(context.Background(), "") {
		if job.State == jobqueue.StatePending || job.State == jobqueue.StateActive {
			pending = append(pending, job)
		}
	}
	return pending
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := billing.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func mustRange(t *testing.T, start, end string) billing.DateRange {
	t.Helper()
	r, err := billing.NewDateRange(mustDate(t, start), mustDate(t, end))
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	return r
}

type cvOption func(*billing.ChargeVersion)

func licenceEnding(t *testing.T, end string) cvOption {
	return func(cv *billing.ChargeVersion) { cv.Licence.DateRange.End = mustDate(t, end) }
}

func twoPartTariffLicence(t *testing.T) cvOption {
	return func(cv *billing.ChargeVersion) {
		a, err := billing.NewAgreement(billing.AgreementCodeTwoPartTariff)
		if err != nil {
			t.Fatalf("agreement: %v", err)
		}
		la, err := billing.NewLicenceAgreement("agreement-1", a, mustRange(t, "2000-01-01", ""))
		if err != nil {
			t.Fatalf("licence agreement: %v", err)
		}
		cv.Licence.Agreements = []billing.LicenceAgreement{la}
		cv.Elements[0].Purpose.IsTwoPartTariff = true
	}
}

func draft() cvOption {
	return func(cv *billing.ChargeVersion) { cv.Status = billing.ChargeVersionStatusDraft }
}

func newChargeVersion(t *testing.T, id string, opts ...cvOption) *billing.ChargeVersion {
	t.Helper()
	cv := billing.ChargeVersion{
		ID: id,
		Licence: billing.Licence{
			LicenceNumber: "01/123/R01",
			RegionID:      "region-1",
			DateRange:     mustRange(t, "2000-01-01", ""),
		},
		VersionNumber:    1,
		DateRange:        mustRange(t, "2010-01-01", ""),
		Status:           billing.ChargeVersionStatusCurrent,
		Scheme:           "alcs",
		CompanyID:        "company-1",
		InvoiceAccountID: "account-1",
		Elements: []billing.ChargeElement{{
			ID:                       "element-" + id,
			Source:                   "unsupported",
			Season:                   billing.SeasonAllYear,
			Loss:                     "low",
			AbstractionPeriod:        billing.AllYear(),
			AuthorisedAnnualQuantity: decimal.NewFromInt(100),
			Purpose:                  billing.Purpose{Code: "400", Description: "Spray Irrigation - Direct"},
			Description:              "Borehole at Test Farm",
		}},
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

var errDirectoryDown = errors.New("directory unavailable")
