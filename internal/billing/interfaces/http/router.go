package billinghttp

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"abstraction-billing/internal/audit"
	"abstraction-billing/internal/billing/application"
	billing "abstraction-billing/internal/billing/domain"
)

// BatchAPI is the batch service surface exposed over HTTP.
type BatchAPI interface {
	CreateBatch(ctx context.Context, cmd application.CreateBatchCommand) (*billing.Batch, error)
	GetBatch(ctx context.Context, batchID string) (*billing.Batch, error)
	ApproveReview(ctx context.Context, batchID string) error
	MarkSent(ctx context.Context, batchID string) error
	DeleteBatch(ctx context.Context, batchID string) error
	StatusCounts(ctx context.Context, batchID string) (billing.StatusCounts, error)
	ListBillingVolumes(ctx context.Context, batchID string) ([]*billing.BillingVolume, error)
}

// ReportReader loads stored batch reports.
type ReportReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Handlers serves the batch operations API.
type Handlers struct {
	batches BatchAPI
	reports ReportReader
	audits  audit.Logger
	logger  *log.Logger
}

// NewRouter mounts health, metrics and the batch API. reports and audits may
// be nil.
func NewRouter(batches BatchAPI, reports ReportReader, audits audit.Logger, logger *log.Logger) (http.Handler, error) {
	if batches == nil {
		return nil, errors.New("billing http: nil batch api")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handlers{batches: batches, reports: reports, audits: audits, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/batches", func(r chi.Router) {
		r.Post("/", h.CreateBatch)
		r.Route("/{batchID}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Delete("/", h.DeleteBatch)
			r.Get("/status", h.GetStatus)
			r.Get("/volumes", h.ListVolumes)
			r.Post("/approve", h.ApproveReview)
			r.Post("/send", h.MarkSent)
			r.Get("/transactions.csv", h.ExportTransactionsCSV)
			r.Get("/reports/{format}", h.DownloadReport)
		})
	})
	return r, nil
}
