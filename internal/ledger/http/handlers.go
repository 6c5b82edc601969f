// Package ledgerhttp exposes the customer ledger console over HTTP.
package ledgerhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/client"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/export"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// EmptyResultInfo is shown inline when a valid period has no transactions.
const EmptyResultInfo = "No transactions found for the selected period"

var (
	errNoReport   = errors.New("no ledger report generated for this workspace")
	errSuperseded = errors.New("report request superseded by a newer one")
)

// ReportService generates reports into workspace slots.
type ReportService interface {
	Submit(ctx context.Context, slot *ledger.Slot, rc ledger.ReportContext, req ledger.ReportRequest) (*ledger.Report, bool, error)
	Resolve(rc ledger.ReportContext, req ledger.ReportRequest) (ledger.Period, error)
}

// Upstream serves the customer list and server rendered PDFs.
type Upstream interface {
	FetchCustomers(ctx context.Context, rc ledger.ReportContext) ([]ledger.Customer, error)
	DownloadPDF(ctx context.Context, rc ledger.ReportContext, customerID string, period ledger.Period) (client.Document, error)
}

// Exporter renders a view into a downloadable artifact.
type Exporter interface {
	Export(ctx context.Context, view []ledger.Row, meta export.Meta, format export.Format) (export.Artifact, error)
}

// AuditRecorder persists export events.
type AuditRecorder interface {
	Record(ctx context.Context, event shared.ExportAudit) (uuid.UUID, error)
}

// ExportObserver counts exports by format and outcome.
type ExportObserver interface {
	ObserveExport(format, outcome string)
}

// Config wires the handler.
type Config struct {
	Logger          *slog.Logger
	Reports         ReportService
	Upstream        Upstream
	Exporter        Exporter
	Workspaces      *ledger.Workspaces
	Audit           AuditRecorder
	Metrics         ExportObserver
	Policy          ledger.SignPolicy
	Location        *time.Location
	ExportRateLimit int
}

// Handler coordinates HTTP requests for the ledger console.
type Handler struct {
	logger          *slog.Logger
	reports         ReportService
	upstream        Upstream
	exporter        Exporter
	workspaces      *ledger.Workspaces
	audit           AuditRecorder
	metrics         ExportObserver
	policy          ledger.SignPolicy
	location        *time.Location
	exportRateLimit int
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		logger:          cfg.Logger,
		reports:         cfg.Reports,
		upstream:        cfg.Upstream,
		exporter:        cfg.Exporter,
		workspaces:      cfg.Workspaces,
		audit:           cfg.Audit,
		metrics:         cfg.Metrics,
		policy:          cfg.Policy,
		location:        cfg.Location,
		exportRateLimit: cfg.ExportRateLimit,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.workspaces == nil {
		h.workspaces = ledger.NewWorkspaces(0)
	}
	if h.location == nil {
		h.location = time.UTC
	}
	if h.policy == "" {
		h.policy = ledger.SignPositiveDr
	}
	return h
}

type reportResponse struct {
	Info         string           `json:"info,omitempty"`
	Report       *ledger.Report   `json:"report"`
	Rows         []ledger.Row     `json:"rows"`
	VoucherTypes []string         `json:"voucherTypes"`
	Sort         ledger.SortState `json:"sort"`
	Opening      string           `json:"openingBalanceLabel,omitempty"`
	Closing      string           `json:"closingBalanceLabel,omitempty"`
	Period       string           `json:"periodLabel,omitempty"`
}

type viewResponse struct {
	Customer     ledger.Customer  `json:"customer"`
	Period       ledger.Period    `json:"period"`
	PeriodLabel  string           `json:"periodLabel"`
	Opening      string           `json:"openingBalanceLabel"`
	Closing      string           `json:"closingBalanceLabel"`
	Summary      ledger.Summary   `json:"summary"`
	Rows         []ledger.Row     `json:"rows"`
	Count        int              `json:"count"`
	Total        int              `json:"total"`
	VoucherTypes []string         `json:"voucherTypes"`
	Sort         ledger.SortState `json:"sort"`
}

type sortRequest struct {
	Column string `json:"column"`
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	rc := h.reportContext(r)
	customers, err := h.upstream.FetchCustomers(r.Context(), rc)
	if err != nil {
		h.respondError(w, "fetch customers", err)
		return
	}
	if customers == nil {
		customers = []ledger.Customer{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req ledger.ReportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("invalid report request body")))
		return
	}
	ws := workspaceFrom(r)
	slot := h.workspaces.Get(ws.ID)
	report, committed, err := h.reports.Submit(r.Context(), slot, h.reportContext(r), req)
	if err != nil {
		if ledger.IsSoft(err) {
			httpx.JSON(w, http.StatusOK, reportResponse{Info: EmptyResultInfo, Rows: []ledger.Row{}, VoucherTypes: []string{}})
			return
		}
		h.respondError(w, "generate ledger report", err)
		return
	}
	if !committed {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrConflict, errSuperseded))
		return
	}
	rows := report.View()
	httpx.JSON(w, http.StatusOK, reportResponse{
		Report:       report,
		Rows:         rows,
		VoucherTypes: ledger.VoucherTypes(rows),
		Sort:         slot.Sort(),
		Opening:      ledger.BalanceLabel(report.OpeningBalance, h.policy),
		Closing:      ledger.BalanceLabel(report.ClosingBalance, h.policy),
		Period:       report.Period.Label(),
	})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	report, rows, state, err := h.currentView(r)
	if err != nil {
		h.respondError(w, "derive ledger view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewResponse{
		Customer:     report.Customer,
		Period:       report.Period,
		PeriodLabel:  report.Period.Label(),
		Opening:      ledger.BalanceLabel(report.OpeningBalance, h.policy),
		Closing:      ledger.BalanceLabel(report.ClosingBalance, h.policy),
		Summary:      report.Summary,
		Rows:         rows,
		Count:        len(rows),
		Total:        len(report.Rows),
		VoucherTypes: ledger.VoucherTypes(report.Rows),
		Sort:         state,
	})
}

func (h *Handler) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("invalid sort request body")))
		return
	}
	col, ok := ledger.ParseColumn(req.Column)
	if !ok {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("unknown sort column")))
		return
	}
	slot, ok := h.workspaces.Lookup(workspaceFrom(r).ID)
	if !ok || slot.Current() == nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, errNoReport))
		return
	}
	httpx.JSON(w, http.StatusOK, slot.ToggleSort(col))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if slot, ok := h.workspaces.Lookup(workspaceFrom(r).ID); ok {
		slot.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
		return
	}
	report, rows, state, err := h.currentView(r)
	if err != nil {
		h.respondError(w, "derive ledger view", err)
		return
	}
	artifact, err := h.exporter.Export(r.Context(), rows, export.MetaFromReport(report, h.policy), format)
	if err != nil {
		h.observeExport(format, "error")
		h.respondError(w, "export ledger", err)
		return
	}
	h.observeExport(format, "ok")

	ws := workspaceFrom(r)
	h.recordAudit(r.Context(), shared.ExportAudit{
		Action:      shared.AuditActionExport,
		WorkspaceID: ws.ID,
		DivisionID:  ws.DivisionID,
		CustomerID:  report.Customer.ID,
		Format:      string(format),
		Period:      report.Period.Label(),
		Rows:        len(rows),
		Filename:    artifact.Filename,
		Meta: map[string]any{
			"search":      r.URL.Query().Get("search"),
			"vchType":     r.URL.Query().Get("vchType"),
			"balanceType": r.URL.Query().Get("balanceType"),
			"sort":        string(state.Column),
			"dir":         string(state.Direction),
		},
	})
	httpx.Attachment(w, artifact.ContentType, artifact.Filename, artifact.Body)
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ledger.ReportRequest{
		CustomerID:    chi.URLParam(r, "customerID"),
		ReportType:    ledger.ReportType(q.Get("reportType")),
		FromDate:      q.Get("fromDate"),
		ToDate:        q.Get("toDate"),
		FinancialYear: q.Get("financialYear"),
		Month:         q.Get("month"),
		Quarter:       q.Get("quarter"),
		Year:          q.Get("year"),
	}
	if req.ReportType == "" {
		req.ReportType = ledger.ReportCustom
	}
	rc := h.reportContext(r)
	period, err := h.reports.Resolve(rc, req)
	if err != nil {
		h.respondError(w, "resolve pdf period", err)
		return
	}
	doc, err := h.upstream.DownloadPDF(r.Context(), rc, req.CustomerID, period)
	if err != nil {
		h.observeExport(export.FormatPDF, "error")
		h.respondError(w, "download ledger pdf", err)
		return
	}
	h.observeExport(export.FormatPDF, "ok")
	ws := workspaceFrom(r)
	h.recordAudit(r.Context(), shared.ExportAudit{
		Action:      shared.AuditActionPDFDownload,
		WorkspaceID: ws.ID,
		DivisionID:  ws.DivisionID,
		CustomerID:  req.CustomerID,
		Format:      string(export.FormatPDF),
		Period:      period.Label(),
		Filename:    doc.Filename,
	})
	httpx.Attachment(w, doc.ContentType, doc.Filename, doc.Body)
}

// currentView derives clamp, filter and sort from the stored report.
func (h *Handler) currentView(r *http.Request) (*ledger.Report, []ledger.Row, ledger.SortState, error) {
	slot, ok := h.workspaces.Lookup(workspaceFrom(r).ID)
	if !ok || slot.Current() == nil {
		return nil, nil, ledger.SortState{}, httpx.Wrap(httpx.ErrNotFound, errNoReport)
	}
	report := slot.Current()
	q := r.URL.Query()

	from, err := h.parseBound(q.Get("from"), "from")
	if err != nil {
		return nil, nil, ledger.SortState{}, err
	}
	to, err := h.parseBound(q.Get("to"), "to")
	if err != nil {
		return nil, nil, ledger.SortState{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, ledger.SortState{}, &ledger.ValidationError{Field: "from", Message: "from must not be after to"}
	}

	state := slot.Sort()
	if raw := q.Get("sort"); raw != "" {
		col, ok := ledger.ParseColumn(raw)
		if !ok {
			return nil, nil, ledger.SortState{}, &ledger.ValidationError{Field: "sort", Message: "unknown sort column"}
		}
		state = ledger.SortState{Column: col, Direction: ledger.ParseDirection(q.Get("dir"))}
	}

	rows := ledger.ClampRange(report.Rows, from, to)
	rows = ledger.ApplyView(rows, ledger.ViewQuery{
		Search:      q.Get("search"),
		VchType:     q.Get("vchType"),
		BalanceType: q.Get("balanceType"),
		Sort:        state,
	})
	return report, rows, state, nil
}

func (h *Handler) parseBound(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(ledger.DateParamLayout, raw, h.location)
	if err != nil {
		return nil, &ledger.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

func (h *Handler) reportContext(r *http.Request) ledger.ReportContext {
	return ledger.ReportContext{DivisionID: workspaceFrom(r).DivisionID, Location: h.location}
}

func (h *Handler) recordAudit(ctx context.Context, event shared.ExportAudit) {
	if h.audit == nil {
		return
	}
	id, err := h.audit.Record(ctx, event)
	if err != nil {
		h.logger.Warn("record export audit", slog.String("event_id", id.String()), slog.Any("error", err))
	}
}

func (h *Handler) observeExport(format export.Format, outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveExport(string(format), outcome)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInvalidPeriod):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	case errors.Is(err, export.ErrUnsupportedFormat):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	case errors.Is(err, ledger.ErrFetch):
		h.logger.Warn(op, slog.Any("error", err))
		httpx.RespondError(w, httpx.Wrap(httpx.ErrUpstream, err))
	case errors.Is(err, ledger.ErrEmptyExport):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrUnprocessable, err))
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrConflict):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
