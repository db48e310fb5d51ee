package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payengine/internal/auth"
	"payengine/internal/domain/activity"
	"payengine/internal/domain/payroll"
	"payengine/internal/domain/payroll/document"
	"payengine/internal/transport/http/api"
	"payengine/internal/transport/http/middleware"
	"payengine/internal/transport/http/shared"
)

const maxBatchSize = 500

// PaycheckService is the part of payroll.Service the handlers drive.
type PaycheckService interface {
	Preview(ctx context.Context, req payroll.Request) (payroll.PaycheckComputation, error)
	ComputeAndRecord(ctx context.Context, req payroll.Request) (payroll.PaycheckComputation, error)
	ComputeBatch(ctx context.Context, reqs []payroll.Request) ([]payroll.PaycheckComputation, error)
	Get(ctx context.Context, id payroll.PaycheckID) (payroll.PaycheckRecord, error)
	GetAudit(ctx context.Context, id payroll.PaycheckID) (payroll.PaycheckAudit, error)
	Ytd(ctx context.Context, employerID payroll.EmployerID, employeeID payroll.EmployeeID, year int) (payroll.YtdSnapshot, error)
	Void(ctx context.Context, id payroll.PaycheckID) (payroll.PaycheckComputation, error)
	RenderPayslip(ctx context.Context, id payroll.PaycheckID) ([]byte, error)
}

// ActivityLog records and lists API actions per employer.
type ActivityLog interface {
	Record(ctx context.Context, evt activity.Event, detail any) error
	Count(ctx context.Context, employerID string, filter activity.Filter) (int, error)
	List(ctx context.Context, employerID string, filter activity.Filter, limit, offset int) ([]activity.Event, error)
}

type Handler struct {
	Service     PaycheckService
	Perms       middleware.PermissionStore
	Idempotency *middleware.IdempotencyStore
	// Activity is optional; without it nothing is recorded and the
	// activity endpoint answers 404.
	Activity ActivityLog
	Now      func() time.Time
}

func NewHandler(service PaycheckService, perms middleware.PermissionStore, idempotency *middleware.IdempotencyStore) *Handler {
	return &Handler{
		Service:     service,
		Perms:       perms,
		Idempotency: idempotency,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

type batchPayload struct {
	Scenarios []document.Scenario `json:"scenarios"`
}

type activityPage struct {
	shared.Page
	Items []activity.Event `json:"items"`
	Total int              `json:"total"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/paychecks", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPaycheckCompute, h.Perms)).Post("/compute", h.handleCompute)
		r.With(middleware.RequirePermission(auth.PermPaycheckPreview, h.Perms)).Post("/preview", h.handlePreview)
		r.With(middleware.RequirePermission(auth.PermPaycheckCompute, h.Perms)).Post("/batch", h.handleBatch)
		r.With(middleware.RequirePermission(auth.PermPaycheckRead, h.Perms)).Get("/{paycheckID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermPaycheckRead, h.Perms)).Get("/{paycheckID}/audit", h.handleGetAudit)
		r.With(middleware.RequirePermission(auth.PermPaycheckRead, h.Perms)).Get("/{paycheckID}/payslip", h.handlePayslip)
		r.With(middleware.RequirePermission(auth.PermPaycheckRead, h.Perms)).Get("/{paycheckID}/lines.csv", h.handleLinesCSV)
		r.With(middleware.RequirePermission(auth.PermPaycheckVoid, h.Perms)).Post("/{paycheckID}/void", h.handleVoid)
	})
	r.With(middleware.RequirePermission(auth.PermYtdRead, h.Perms)).
		Get("/employers/{employerID}/employees/{employeeID}/ytd", h.handleYtd)
	r.With(middleware.RequirePermission(auth.PermActivityRead, h.Perms)).
		Get("/employers/{employerID}/activity", h.handleActivity)
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "unable to read request body", reqID)
		return
	}
	req, ok := h.decodeScenario(w, r, body)
	if !ok {
		return
	}

	scope, ok := h.replayScope(w, r, user, "paychecks.compute")
	if !ok {
		return
	}
	fingerprint := middleware.Fingerprint(body)
	if h.replay(w, r, scope, fingerprint) {
		return
	}

	comp, err := h.Service.ComputeAndRecord(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, reqID)
		return
	}
	h.remember(r, scope, fingerprint, comp)
	h.record(r, user, string(comp.Paycheck.EmployerID), activity.ActionPaycheckComputed, activity.EntityPaycheck,
		string(comp.Paycheck.PaycheckID), map[string]any{"employeeId": comp.Paycheck.EmployeeID, "net": comp.Paycheck.Net})
	api.Created(w, comp, reqID)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "unable to read request body", middleware.GetRequestID(r.Context()))
		return
	}
	req, ok := h.decodeScenario(w, r, body)
	if !ok {
		return
	}
	comp, err := h.Service.Preview(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, comp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload batchPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid request body", reqID)
		return
	}

	v := shared.NewValidator()
	v.Count("scenarios", len(payload.Scenarios), 1, maxBatchSize)
	if v.Reject(w, reqID) {
		return
	}

	reqs := make([]payroll.Request, 0, len(payload.Scenarios))
	for i, s := range payload.Scenarios {
		req, err := s.Request()
		if err != nil {
			api.FailWithDetails(w, http.StatusBadRequest, "invalid_document", err.Error(), map[string]int{"index": i}, reqID)
			return
		}
		if !user.CanAccessEmployer(string(req.Input.EmployerID)) {
			api.Fail(w, http.StatusForbidden, "forbidden", "employer not accessible", reqID)
			return
		}
		reqs = append(reqs, req)
	}

	comps, err := h.Service.ComputeBatch(r.Context(), reqs)
	if err != nil {
		writeServiceError(w, err, reqID)
		return
	}
	ids := make([]payroll.PaycheckID, len(comps))
	for i, c := range comps {
		ids[i] = c.Paycheck.PaycheckID
	}
	first := reqs[0].Input
	h.record(r, user, string(first.EmployerID), activity.ActionBatchComputed, activity.EntityPayRun,
		string(first.PayRunID), map[string]any{"paycheckIds": ids})
	api.Created(w, comps, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.loadRecord(w, r); !ok {
		return
	}
	audit, err := h.Service.GetAudit(r.Context(), payroll.PaycheckID(chi.URLParam(r, "paycheckID")))
	if err != nil {
		writeServiceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, audit, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	pdf, err := h.Service.RenderPayslip(r.Context(), rec.Computation.Paycheck.PaycheckID)
	if err != nil {
		writeServiceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="payslip-`+string(rec.Computation.Paycheck.PaycheckID)+`.pdf"`)
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("payslip write failed", "paycheck_id", rec.Computation.Paycheck.PaycheckID, "err", err)
	}
}

func (h *Handler) handleLinesCSV(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := payroll.WriteLinesCSV(&buf, rec.Computation.Paycheck); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export paycheck lines", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(rec.Computation.Paycheck.PaycheckID)+`-lines.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("csv write failed", "paycheck_id", rec.Computation.Paycheck.PaycheckID, "err", err)
	}
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	id := rec.Computation.Paycheck.PaycheckID

	scope, ok := h.replayScope(w, r, user, "paychecks.void")
	if !ok {
		return
	}
	fingerprint := middleware.Fingerprint([]byte(id))
	if h.replay(w, r, scope, fingerprint) {
		return
	}

	reversal, err := h.Service.Void(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, reqID)
		return
	}
	h.remember(r, scope, fingerprint, reversal)
	h.record(r, user, string(rec.Computation.Paycheck.EmployerID), activity.ActionPaycheckVoided, activity.EntityPaycheck,
		string(id), map[string]any{"reversalId": reversal.Paycheck.PaycheckID})
	api.Created(w, reversal, reqID)
}

func (h *Handler) handleYtd(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	employerID := chi.URLParam(r, "employerID")
	employeeID := chi.URLParam(r, "employeeID")

	v := shared.NewValidator()
	year := v.Year("year", r.URL.Query().Get("year"), h.Now().Year())
	if v.Reject(w, reqID) {
		return
	}
	if !user.CanAccessEmployer(employerID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "employer not accessible", reqID)
		return
	}

	snap, err := h.Service.Ytd(r.Context(), payroll.EmployerID(employerID), payroll.EmployeeID(employeeID), year)
	if err != nil {
		writeServiceError(w, err, reqID)
		return
	}
	api.Success(w, snap, reqID)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	employerID := chi.URLParam(r, "employerID")

	if h.Activity == nil {
		api.Fail(w, http.StatusNotFound, "not_found", "activity log not enabled", reqID)
		return
	}
	if !user.CanAccessEmployer(employerID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "employer not accessible", reqID)
		return
	}

	query := r.URL.Query()
	v := shared.NewValidator()
	filter := activity.Filter{
		Action:    v.OneOf("action", query.Get("action"), activity.Actions),
		ActorUser: query.Get("actor"),
		From:      v.Day("from", query.Get("from")),
		To:        v.Day("to", query.Get("to")),
	}
	v.DayRange("from", filter.From, "to", filter.To)
	page := v.Page(query, 50, 200)
	if v.Reject(w, reqID) {
		return
	}

	total, err := h.Activity.Count(r.Context(), employerID, filter)
	if err != nil {
		slog.Error("activity count failed", "employer_id", employerID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "activity_failed", "failed to load activity", reqID)
		return
	}
	items, err := h.Activity.List(r.Context(), employerID, filter, page.Limit, page.Offset)
	if err != nil {
		slog.Error("activity list failed", "employer_id", employerID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "activity_failed", "failed to load activity", reqID)
		return
	}
	api.Success(w, activityPage{Page: page, Items: items, Total: total}, reqID)
}

func (h *Handler) decodeScenario(w http.ResponseWriter, r *http.Request, body []byte) (payroll.Request, bool) {
	reqID := middleware.GetRequestID(r.Context())
	scenario, err := document.DecodeJSON(bytes.NewReader(body))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", err.Error(), reqID)
		return payroll.Request{}, false
	}
	req, err := scenario.Request()
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_document", err.Error(), reqID)
		return payroll.Request{}, false
	}
	user, _ := middleware.GetUser(r.Context())
	if !user.CanAccessEmployer(string(req.Input.EmployerID)) {
		api.Fail(w, http.StatusForbidden, "forbidden", "employer not accessible", reqID)
		return payroll.Request{}, false
	}
	return req, true
}

// loadRecord fetches the paycheck named in the path and enforces the
// caller's employer scope. It writes the failure response itself.
func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (payroll.PaycheckRecord, bool) {
	reqID := middleware.GetRequestID(r.Context())
	rec, err := h.Service.Get(r.Context(), payroll.PaycheckID(chi.URLParam(r, "paycheckID")))
	if err != nil {
		writeServiceError(w, err, reqID)
		return payroll.PaycheckRecord{}, false
	}
	user, _ := middleware.GetUser(r.Context())
	if !user.CanAccessEmployer(string(rec.Computation.Paycheck.EmployerID)) {
		api.Fail(w, http.StatusNotFound, "not_found", "paycheck not found", reqID)
		return payroll.PaycheckRecord{}, false
	}
	return rec, true
}

func (h *Handler) replayScope(w http.ResponseWriter, r *http.Request, user auth.UserContext, operation string) (middleware.ReplayScope, bool) {
	key, err := middleware.IdempotencyKey(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", err.Error(), middleware.GetRequestID(r.Context()))
		return middleware.ReplayScope{}, false
	}
	return middleware.ReplayScope{ActorID: user.UserID, Operation: operation, Key: key}, true
}

// replay answers from the idempotency store when the key was seen before and
// reports whether it did. Store failures fall through to a fresh compute.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, scope middleware.ReplayScope, fingerprint string) bool {
	stored, found, err := h.Idempotency.Lookup(r.Context(), scope, fingerprint)
	if errors.Is(err, middleware.ErrIdempotencyConflict) {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), middleware.GetRequestID(r.Context()))
		return true
	}
	if err != nil {
		slog.Warn("idempotency lookup failed", "operation", scope.Operation, "err", err)
		return false
	}
	if found {
		api.Created(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
	}
	return found
}

func (h *Handler) remember(r *http.Request, scope middleware.ReplayScope, fingerprint string, response any) {
	if scope.Key == "" {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		slog.Warn("idempotency response marshal failed", "operation", scope.Operation, "err", err)
		return
	}
	if err := h.Idempotency.Remember(r.Context(), scope, fingerprint, payload); err != nil {
		slog.Warn("idempotency remember failed", "operation", scope.Operation, "err", err)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, employerID, action, entityType, entityID string, detail any) {
	if h.Activity == nil {
		return
	}
	evt := activity.Event{
		EmployerID: employerID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         middleware.ClientIP(r),
	}
	if err := h.Activity.Record(r.Context(), evt, detail); err != nil {
		slog.Warn("activity record failed", "action", action, "entity_id", entityID, "err", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, payroll.ErrPaycheckNotFound), errors.Is(err, payroll.ErrAuditNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrAlreadyVoided):
		api.Fail(w, http.StatusConflict, "already_voided", err.Error(), requestID)
	case errors.Is(err, payroll.ErrYtdConflict):
		api.Fail(w, http.StatusConflict, "ytd_conflict", "employee ytd changed concurrently, retry the request", requestID)
	case errors.Is(err, payroll.ErrYtdYearMismatch):
		api.Fail(w, http.StatusUnprocessableEntity, "ytd_year_mismatch", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidInput), errors.Is(err, document.ErrInvalidDocument):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	case errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusServiceUnavailable, "engine_timeout", "paycheck computation timed out", requestID)
	default:
		slog.Error("payroll request failed", "err", err, "request_id", requestID)
		api.Fail(w, http.StatusInternalServerError, "payroll_failed", "payroll request failed", requestID)
	}
}
