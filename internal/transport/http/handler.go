// Package httptransport is the thin HTTP layer over the inspection service.
// Handlers delegate to the core and translate results; no business logic lives
// here.
package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"platecheck/internal/domain"
	"platecheck/internal/inspection"
	"platecheck/internal/platform/metrics"
	"platecheck/internal/platform/middleware"
	"platecheck/internal/report"
	"platecheck/internal/transport/http/shared"
	dErrors "platecheck/pkg/domain-errors"
)

// maxUploadBytes bounds a single feed upload.
const maxUploadBytes = 32 << 20

// Handler handles the inspection endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *inspection.Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func New(service *inspection.Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts all inspection routes behind the standard middleware stack.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Post("/feeds/{kind}", h.handleFeedUpload)
	router.Post("/vehicles/flush", h.handleFlush)
	router.Get("/vehicles/{plate}", h.handleLookup)

	router.Post("/audits", h.handleBeginAudit)
	router.Post("/audits/{id}/approve", h.handleApprove)
	router.Post("/audits/{id}/block", h.handleBlock)
	router.Post("/audits/{id}/problem", h.handleSubmitProblem)
	router.Post("/audits/{id}/cancel", h.handleCancel)

	router.Get("/reports", h.handleReport)
	router.Get("/reports/export.xlsx", h.handleReportExport)

	r.Mount("/", router)
}

type warningResponse struct {
	RowOrdinal int    `json:"row"`
	Reason     string `json:"reason"`
}

type uploadResponse struct {
	Warnings []warningResponse `json:"warnings"`
}

// handleFeedUpload ingests one feed file and merges it into the store.
func (h *Handler) handleFeedUpload(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseSourceKind(chi.URLParam(r, "kind"))
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown feed kind"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid multipart body", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "missing file field", err))
		return
	}
	defer file.Close()

	skipRows := 0
	if raw := r.FormValue("skip_rows"); raw != "" {
		skipRows, err = strconv.Atoi(raw)
		if err != nil || skipRows < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "skip_rows must be a non-negative integer"))
			return
		}
	}

	warnings, err := h.service.NormalizeAndMerge(r.Context(), []inspection.Upload{{
		Source:   kind,
		Filename: header.Filename,
		SkipRows: skipRows,
		Content:  file,
	}})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "feed upload failed",
			"kind", kind,
			"file", header.Filename,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	resp := uploadResponse{Warnings: make([]warningResponse, 0, len(warnings))}
	for _, warning := range warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{RowOrdinal: warning.RowOrdinal, Reason: warning.Reason})
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Flush(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "flush failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vehicleResponse struct {
	Plate          string            `json:"plate"`
	DisplayName    string            `json:"display_name,omitempty"`
	DiveDeepStatus string            `json:"dive_deep_status"`
	VinAuditStatus string            `json:"vin_audit_status"`
	GroundedStatus string            `json:"grounded_status"`
	ExtraInfo      map[string]string `json:"extra_info,omitempty"`
	ShouldPass     bool              `json:"should_pass"`
}

func vehicleToResponse(record domain.VehicleRecord) vehicleResponse {
	return vehicleResponse{
		Plate:          record.Plate,
		DisplayName:    record.DisplayName,
		DiveDeepStatus: string(record.DiveDeepStatus),
		VinAuditStatus: string(record.VinAuditStatus),
		GroundedStatus: string(record.GroundedStatus),
		ExtraInfo:      record.ExtraInfo,
		ShouldPass:     record.ShouldPass(),
	}
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Lookup(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, vehicleToResponse(record))
}

type beginAuditRequest struct {
	Plate string `json:"plate"`
}

type sessionResponse struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Vehicle   vehicleResponse `json:"vehicle"`
}

func (h *Handler) handleBeginAudit(w http.ResponseWriter, r *http.Request) {
	var req beginAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid request body", err))
		return
	}

	auditor := middleware.GetAuditorIdentity(r.Context())
	session, err := h.service.BeginAudit(r.Context(), req.Plate, auditor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		Vehicle:   vehicleToResponse(session.Vehicle()),
	})
}

type outcomeResponse struct {
	ID          string `json:"id"`
	Plate       string `json:"plate"`
	VehicleName string `json:"vehicle_name,omitempty"`
	DecidedAt   string `json:"decided_at"`
	Result      string `json:"result"`
	Problem     string `json:"problem,omitempty"`
	Auditor     string `json:"auditor"`
	QRPayload   string `json:"qr_payload,omitempty"`
}

func outcomeToResponse(outcome domain.AuditOutcome) outcomeResponse {
	return outcomeResponse{
		ID:          outcome.ID,
		Plate:       outcome.Plate,
		VehicleName: outcome.VehicleNameSnapshot,
		DecidedAt:   outcome.Timestamp.UTC().Format(time.RFC3339Nano),
		Result:      string(outcome.Result),
		Problem:     outcome.ProblemDescription,
		Auditor:     outcome.AuditorIdentity,
		QRPayload:   outcome.QRPayload,
	}
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AuditSession(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	outcome, err := h.service.Approve(r.Context(), session)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AuditSession(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.Block(r.Context(), session); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"state":      string(session.State()),
	})
}

type submitProblemRequest struct {
	Problem string `json:"problem"`
}

func (h *Handler) handleSubmitProblem(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AuditSession(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req submitProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid request body", err))
		return
	}
	outcome, err := h.service.SubmitProblem(r.Context(), session, req.Problem)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AuditSession(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.CancelAudit(r.Context(), session); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportRowResponse struct {
	Plate          string `json:"plate"`
	VehicleName    string `json:"vehicle_name,omitempty"`
	Result         string `json:"result"`
	Problem        string `json:"problem,omitempty"`
	Auditor        string `json:"auditor"`
	DecidedAt      string `json:"decided_at"`
	DiveDeepStatus string `json:"dive_deep_status"`
	VinAuditStatus string `json:"vin_audit_status"`
	GroundedStatus string `json:"grounded_status"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	filter, ok := domain.ParseOutcomeFilter(r.URL.Query().Get("filter"))
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "filter must be all, passed or blocked"))
		return
	}

	rows, err := h.service.Report(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := make([]reportRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, reportRowResponse{
			Plate:          row.Plate,
			VehicleName:    row.VehicleName,
			Result:         string(row.Result),
			Problem:        row.Problem,
			Auditor:        row.Auditor,
			DecidedAt:      row.DecidedAt.UTC().Format(time.RFC3339Nano),
			DiveDeepStatus: string(row.DiveDeepStatus),
			VinAuditStatus: string(row.VinAuditStatus),
			GroundedStatus: string(row.GroundedStatus),
		})
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReportExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := domain.ParseOutcomeFilter(r.URL.Query().Get("filter"))
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "filter must be all, passed or blocked"))
		return
	}

	// Render into memory first: once headers are written the response is
	// committed, and a mid-stream failure would hand the client a truncated
	// 200 download. Reports are small enough to buffer.
	var buf bytes.Buffer
	if err := h.service.ExportXLSX(r.Context(), &buf, filter); err != nil {
		h.logger.ErrorContext(r.Context(), "report export failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", report.SpreadsheetContentType)
	w.Header().Set("Content-Disposition", `attachment; filename=audit-report.xlsx`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
