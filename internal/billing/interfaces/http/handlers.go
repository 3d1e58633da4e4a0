package billinghttp

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"abstraction-billing/internal/audit"
	"abstraction-billing/internal/billing/application"
	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/billing/interfaces"
	"abstraction-billing/internal/billing/infrastructure/reportstore"
)

type createBatchRequest struct {
	RegionID  string `json:"region_id"`
	Type      string `json:"batch_type"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
	IsSummer  bool   `json:"is_summer"`
}

type batchResponse struct {
	ID           string            `json:"id"`
	RegionID     string            `json:"region_id"`
	Type         string            `json:"batch_type"`
	StartYear    int               `json:"start_year"`
	EndYear      int               `json:"end_year"`
	IsSummer     bool              `json:"is_summer"`
	Status       string            `json:"status"`
	ErrorCode    int               `json:"error_code,omitempty"`
	ExternalID   string            `json:"external_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Invoices     []invoiceResponse `json:"invoices"`
	Transactions int               `json:"transaction_count"`
}

type invoiceResponse struct {
	ID              string `json:"id"`
	AccountNumber   string `json:"invoice_account_number"`
	FinancialYear   int    `json:"financial_year_ending"`
	InvoiceLicences int    `json:"invoice_licence_count"`
	Transactions    int    `json:"transaction_count"`
}

type statusResponse struct {
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Error      int `json:"error"`
	Total      int `json:"total"`
}

type volumeResponse struct {
	ID                  string  `json:"id"`
	ChargeElementID     string  `json:"charge_element_id"`
	FinancialYear       int     `json:"financial_year_ending"`
	IsSummer            bool    `json:"is_summer"`
	CalculatedVolume    *string `json:"calculated_volume"`
	Volume              *string `json:"volume"`
	TwoPartTariffStatus *int    `json:"two_part_tariff_status"`
	TwoPartTariffError  bool    `json:"two_part_tariff_error"`
	IsApproved          bool    `json:"is_approved"`
}

// CreateBatch handles POST /api/v1/batches.
func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.RegionID == "" {
		writeError(w, http.StatusBadRequest, "region_id is required")
		return
	}
	batchType, err := billing.ParseBatchType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "batch_type must be annual, supplementary or two_part_tariff")
		return
	}
	if req.EndYear == 0 {
		req.EndYear = req.StartYear
	}
	batch, err := h.batches.CreateBatch(r.Context(), application.CreateBatchCommand{
		RegionID:  req.RegionID,
		Type:      batchType,
		StartYear: req.StartYear,
		EndYear:   req.EndYear,
		IsSummer:  req.IsSummer,
	})
	batchID := ""
	if batch != nil {
		batchID = batch.ID
	}
	h.record(r, audit.ActionBatchCreate, batchID, req, err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(batch))
}

// GetBatch handles GET /api/v1/batches/{batchID}.
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

// DeleteBatch handles DELETE /api/v1/batches/{batchID}.
func (h *Handlers) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	err := h.batches.DeleteBatch(r.Context(), batchID)
	h.record(r, audit.ActionBatchDelete, batchID, nil, err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus handles GET /api/v1/batches/{batchID}/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.batches.StatusCounts(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Processing: counts.Processing,
		Ready:      counts.Ready,
		Error:      counts.Error,
		Total:      counts.Total(),
	})
}

// ListVolumes handles GET /api/v1/batches/{batchID}/volumes.
func (h *Handlers) ListVolumes(w http.ResponseWriter, r *http.Request) {
	volumes, err := h.batches.ListBillingVolumes(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := make([]volumeResponse, 0, len(volumes))
	for _, v := range volumes {
		item := volumeResponse{
			ID:                 v.ID,
			ChargeElementID:    v.ChargeElementID,
			FinancialYear:      v.FinancialYear.EndYear(),
			IsSummer:           v.IsSummer,
			TwoPartTariffError: v.TwoPartTariffError,
			IsApproved:         v.IsApproved,
		}
		if v.CalculatedVolume != nil {
			s := v.CalculatedVolume.String()
			item.CalculatedVolume = &s
		}
		if v.Volume != nil {
			s := v.Volume.String()
			item.Volume = &s
		}
		if v.TwoPartTariffStatus != nil {
			code := int(*v.TwoPartTariffStatus)
			item.TwoPartTariffStatus = &code
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveReview handles POST /api/v1/batches/{batchID}/approve.
func (h *Handlers) ApproveReview(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	err := h.batches.ApproveReview(r.Context(), batchID)
	h.record(r, audit.ActionBatchApprove, batchID, nil, err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// MarkSent handles POST /api/v1/batches/{batchID}/send.
func (h *Handlers) MarkSent(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	err := h.batches.MarkSent(r.Context(), batchID)
	h.record(r, audit.ActionBatchSend, batchID, nil, err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTransactionsCSV handles GET /api/v1/batches/{batchID}/transactions.csv.
func (h *Handlers) ExportTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"financial_year_ending",
		"invoice_account_number",
		"licence_number",
		"transaction_id",
		"charge_element_id",
		"charge_period_start",
		"charge_period_end",
		"authorised_days",
		"billable_days",
		"volume",
		"is_credit",
		"is_compensation_charge",
		"canal_and_rivers_trust",
		"status",
		"description",
	})
	for _, inv := range batch.Invoices {
		for _, il := range inv.InvoiceLicences {
			for _, t := range il.Transactions {
				volume := ""
				if t.Volume != nil {
					volume = t.Volume.String()
				}
				_ = writer.Write([]string{
					strconv.Itoa(inv.FinancialYear.EndYear()),
					inv.InvoiceAccount.AccountNumber,
					il.LicenceNumber,
					t.ID,
					t.ChargeElement.ID,
					billing.FormatDate(t.ChargePeriod.Start),
					billing.FormatDate(t.ChargePeriod.End),
					strconv.Itoa(t.AuthorisedDays),
					strconv.Itoa(t.BillableDays),
					volume,
					strconv.FormatBool(t.IsCredit),
					strconv.FormatBool(t.IsCompensationCharge),
					t.CanalAndRiversTrustCode(),
					string(t.Status),
					t.Description,
				})
			}
		}
	}
	writer.Flush()
}

// DownloadReport handles GET /api/v1/batches/{batchID}/reports/{format}.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not configured")
		return
	}
	format := chi.URLParam(r, "format")
	contentType, err := interfaces.ContentType(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "format must be pdf or xlsx")
		return
	}
	batchID := chi.URLParam(r, "batchID")
	data, err := h.reports.Get(r.Context(), interfaces.ReportKey(batchID, format))
	if err != nil {
		if errors.Is(err, reportstore.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.Printf("billing http: report batch=%s format=%s err=%v", batchID, format, err)
		writeError(w, http.StatusInternalServerError, "load report error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"batch-"+batchID+"."+format+"\"")
	_, _ = w.Write(data)
}

// record writes an audit entry for a batch action. Audit failures are logged
// and never fail the request.
func (h *Handlers) record(r *http.Request, action, batchID string, metadata any, actionErr error) {
	if h.audits == nil {
		return
	}
	entry := audit.ForBatch(action, batchID, r.Header.Get("X-Actor"), metadata, actionErr)
	entry.IP = r.RemoteAddr
	entry.UserAgent = r.UserAgent()
	if err := h.audits.Log(r.Context(), entry); err != nil {
		h.logger.Printf("billing http: audit action=%s batch=%s err=%v", action, batchID, err)
	}
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, billing.ErrBatchAlreadyLive),
		errors.Is(err, billing.ErrInvalidStatusTransition),
		errors.Is(err, billing.ErrBatchNotDeletable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrInvalidFinancialYear),
		errors.Is(err, billing.ErrInvalidFinancialYearRange),
		errors.Is(err, billing.ErrInvalidBatchType),
		errors.Is(err, billing.ErrEmptyID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Printf("billing http: err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toBatchResponse(batch *billing.Batch) batchResponse {
	resp := batchResponse{
		ID:         batch.ID,
		RegionID:   batch.RegionID,
		Type:       string(batch.Type),
		StartYear:  batch.StartYear.EndYear(),
		EndYear:    batch.EndYear.EndYear(),
		IsSummer:   batch.IsSummer,
		Status:     string(batch.Status),
		ErrorCode:  int(batch.ErrorCode),
		ExternalID: batch.ExternalID,
		CreatedAt:  batch.CreatedAt,
		UpdatedAt:  batch.UpdatedAt,
		Invoices:   make([]invoiceResponse, 0, len(batch.Invoices)),
	}
	for _, inv := range batch.Invoices {
		n := len(inv.Transactions())
		resp.Transactions += n
		resp.Invoices = append(resp.Invoices, invoiceResponse{
			ID:              inv.ID,
			AccountNumber:   inv.InvoiceAccount.AccountNumber,
			FinancialYear:   inv.FinancialYear.EndYear(),
			InvoiceLicences: len(inv.InvoiceLicences),
			Transactions:    n,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
