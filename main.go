package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abstraction-billing/internal/audit"
	"abstraction-billing/internal/billing/adapters/crm"
	"abstraction-billing/internal/billing/adapters/returns"
	"abstraction-billing/internal/billing/application"
	billingrepo "abstraction-billing/internal/billing/infrastructure/postgres"
	"abstraction-billing/internal/billing/infrastructure/reportstore"
	"abstraction-billing/internal/billing/interfaces"
	billinghttp "abstraction-billing/internal/billing/interfaces/http"
	"abstraction-billing/internal/config"
	"abstraction-billing/internal/jobqueue"
	jobrepo "abstraction-billing/internal/jobqueue/infrastructure/postgres"
	"abstraction-billing/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	invoices := billingrepo.NewInvoiceRepository(db)
	batches := billingrepo.NewBatchRepository(db)
	chargeVersions := billingrepo.NewChargeVersionRepository(db)
	rows := billingrepo.NewChargeVersionYearRepository(db)
	volumes := billingrepo.NewBillingVolumeRepository(db)
	transactions := billingrepo.NewTransactionRepository(db)

	jobs := jobrepo.NewJobStore(db)
	dlq := jobrepo.NewDLQStore(db)
	queue, err := jobqueue.NewQueue(jobs, jobqueue.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("job queue error: %v", err)
	}
	worker, err := jobqueue.NewWorker(jobs, dlq, jobqueue.SystemClock{}, logger, jobqueue.WorkerConfig{
		Concurrency:  cfg.Worker.Concurrency,
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
	})
	if err != nil {
		logger.Fatalf("job worker error: %v", err)
	}

	directory, err := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Token, cfg.CRM.Timeout)
	if err != nil {
		logger.Fatalf("crm client error: %v", err)
	}
	returnsClient, err := returns.NewClient(cfg.Returns.BaseURL, cfg.Returns.Token, cfg.Returns.Timeout)
	if err != nil {
		logger.Fatalf("returns client error: %v", err)
	}

	var (
		reportReader billinghttp.ReportReader
		publisher    application.ReportPublisher
	)
	if cfg.Reports.Enabled() {
		store, err := buildReportStore(cfg.Reports)
		if err != nil {
			logger.Fatalf("report store error: %v", err)
		}
		reportPublisher, err := interfaces.NewReportPublisher(store, cfg.Reports.Formats, logger)
		if err != nil {
			logger.Fatalf("report publisher error: %v", err)
		}
		reportReader = store
		publisher = reportPublisher
	}

	tpt, err := application.NewTwoPartTariffService(volumes, returnsClient, nil, application.NewUUID, logger)
	if err != nil {
		logger.Fatalf("two-part tariff service error: %v", err)
	}
	processor, err := application.NewChargeVersionYearService(batches, chargeVersions, directory, tpt, application.NewUUID, logger)
	if err != nil {
		logger.Fatalf("charge version year service error: %v", err)
	}
	ledger, err := interfaces.NewLoggingLedger(logger, application.NewUUID)
	if err != nil {
		logger.Fatalf("ledger error: %v", err)
	}
	preparer, err := application.NewTransactionPreparer(batches, invoices, volumes, transactions, ledger, publisher, application.SystemClock{}, application.NewUUID, logger)
	if err != nil {
		logger.Fatalf("transaction preparer error: %v", err)
	}
	pipeline, err := application.NewPipeline(application.PipelineDeps{
		Batches:        batches,
		ChargeVersions: chargeVersions,
		Rows:           rows,
		Volumes:        volumes,
		Invoices:       invoices,
		Processor:      processor,
		Preparer:       preparer,
		Queue:          queue,
		Logger:         logger,
	}, application.PipelineConfig{ChargeVersionYearAttempts: cfg.Worker.ChargeVersionYearAttempts})
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}
	pipeline.Register(worker)

	batchService, err := application.NewBatchService(batches, rows, volumes, invoices, queue, application.SystemClock{}, application.NewUUID, logger)
	if err != nil {
		logger.Fatalf("batch service error: %v", err)
	}

	router, err := billinghttp.NewRouter(batchService, reportReader, audit.NewRepository(db), logger)
	if err != nil {
		logger.Fatalf("http router error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(router, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	<-workerDone
}

type reportStore interface {
	interfaces.ReportStore
	billinghttp.ReportReader
}

func buildReportStore(cfg config.ReportsConfig) (reportStore, error) {
	if cfg.S3Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return reportstore.NewS3Store(ctx, reportstore.S3Config{
			Bucket:  cfg.S3Bucket,
			Prefix:  cfg.S3Prefix,
			Region:  cfg.S3Region,
			Profile: cfg.S3Profile,
		})
	}
	return reportstore.NewFileStore(cfg.Dir)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
