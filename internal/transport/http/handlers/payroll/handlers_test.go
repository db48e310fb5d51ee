package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payengine/internal/auth"
	"payengine/internal/domain/activity"
	"payengine/internal/domain/money"
	"payengine/internal/domain/payroll"
	"payengine/internal/transport/http/api"
	"payengine/internal/transport/http/middleware"
)

type fakeService struct {
	records  map[payroll.PaycheckID]payroll.PaycheckRecord
	computed []payroll.Request
	voided   []payroll.PaycheckID
	err      error
}

func newFakeService() *fakeService {
	return &fakeService{records: map[payroll.PaycheckID]payroll.PaycheckRecord{}}
}

func (f *fakeService) result(req payroll.Request) payroll.PaycheckComputation {
	id := req.Input.PaycheckID
	if id == "" {
		id = "generated-1"
	}
	return payroll.PaycheckComputation{Paycheck: payroll.PaycheckResult{
		PaycheckID: id,
		EmployerID: req.Input.EmployerID,
		EmployeeID: req.Input.EmployeeID,
		Gross:      money.Dollars(100),
		Net:        money.Dollars(100),
	}}
}

func (f *fakeService) Preview(_ context.Context, req payroll.Request) (payroll.PaycheckComputation, error) {
	if f.err != nil {
		return payroll.PaycheckComputation{}, f.err
	}
	return f.result(req), nil
}

func (f *fakeService) ComputeAndRecord(_ context.Context, req payroll.Request) (payroll.PaycheckComputation, error) {
	if f.err != nil {
		return payroll.PaycheckComputation{}, f.err
	}
	f.computed = append(f.computed, req)
	comp := f.result(req)
	f.records[comp.Paycheck.PaycheckID] = payroll.PaycheckRecord{Computation: comp, Status: payroll.PaycheckStatusIssued}
	return comp, nil
}

func (f *fakeService) ComputeBatch(ctx context.Context, reqs []payroll.Request) ([]payroll.PaycheckComputation, error) {
	out := make([]payroll.PaycheckComputation, 0, len(reqs))
	for _, req := range reqs {
		comp, err := f.ComputeAndRecord(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, nil
}

func (f *fakeService) Get(_ context.Context, id payroll.PaycheckID) (payroll.PaycheckRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return payroll.PaycheckRecord{}, payroll.ErrPaycheckNotFound
	}
	return rec, nil
}

func (f *fakeService) GetAudit(_ context.Context, id payroll.PaycheckID) (payroll.PaycheckAudit, error) {
	rec, ok := f.records[id]
	if !ok {
		return payroll.PaycheckAudit{}, payroll.ErrAuditNotFound
	}
	return rec.Computation.Audit, nil
}

func (f *fakeService) Ytd(_ context.Context, _ payroll.EmployerID, _ payroll.EmployeeID, year int) (payroll.YtdSnapshot, error) {
	return payroll.NewYtdSnapshot(year), nil
}

func (f *fakeService) Void(_ context.Context, id payroll.PaycheckID) (payroll.PaycheckComputation, error) {
	rec, ok := f.records[id]
	if !ok {
		return payroll.PaycheckComputation{}, payroll.ErrPaycheckNotFound
	}
	if rec.Status != payroll.PaycheckStatusIssued {
		return payroll.PaycheckComputation{}, payroll.ErrAlreadyVoided
	}
	rec.Status = payroll.PaycheckStatusVoided
	f.records[id] = rec
	f.voided = append(f.voided, id)
	return payroll.PaycheckComputation{Paycheck: payroll.Negate(rec.Computation.Paycheck)}, nil
}

func (f *fakeService) RenderPayslip(_ context.Context, id payroll.PaycheckID) ([]byte, error) {
	if _, ok := f.records[id]; !ok {
		return nil, payroll.ErrPaycheckNotFound
	}
	return []byte("%PDF-1.3 fake"), nil
}

type fakeActivity struct {
	events []activity.Event
}

func (f *fakeActivity) Record(_ context.Context, evt activity.Event, _ any) error {
	evt.ID = int64(len(f.events) + 1)
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeActivity) Count(_ context.Context, employerID string, filter activity.Filter) (int, error) {
	return len(f.matching(employerID, filter)), nil
}

func (f *fakeActivity) List(_ context.Context, employerID string, filter activity.Filter, limit, offset int) ([]activity.Event, error) {
	out := f.matching(employerID, filter)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeActivity) matching(employerID string, filter activity.Filter) []activity.Event {
	var out []activity.Event
	for _, evt := range f.events {
		if evt.EmployerID != employerID || (filter.Action != "" && evt.Action != filter.Action) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func newTestRouter(svc PaycheckService, user *auth.UserContext, configure ...func(*Handler)) http.Handler {
	h := NewHandler(svc, auth.StaticPermissions(auth.RolePermissions), nil)
	h.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	for _, fn := range configure {
		fn(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1", h.RegisterRoutes)
	return r
}

func admin() *auth.UserContext {
	return &auth.UserContext{UserID: "u-admin", Role: auth.RoleAdmin}
}

const scenarioJSON = `{
	"paycheck": {
		"paycheckId": "chk-1",
		"employerId": "er-1",
		"employeeId": "ee-1",
		"period": {"start": "2025-01-01", "end": "2025-01-14", "check": "2025-01-17", "frequency": "BIWEEKLY"},
		"employee": {"compensation": {"kind": "HOURLY", "hourlyRate": "20.00"}},
		"time": {"regularHours": "5"}
	}
}`

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env api.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
	}
	return rec, env
}

func TestComputeRecordsPaycheck(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc, admin())

	rec, env := do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Success || env.RequestID == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(svc.computed) != 1 {
		t.Fatalf("expected one computation, got %d", len(svc.computed))
	}
	in := svc.computed[0].Input
	if in.EmployeeID != "ee-1" || in.Period.Frequency != payroll.FrequencyBiweekly {
		t.Fatalf("unexpected input: %+v", in)
	}
}

func TestComputeRejectsInvalidDocument(t *testing.T) {
	router := newTestRouter(newFakeService(), admin())

	body := strings.Replace(scenarioJSON, `"BIWEEKLY"`, `"FORTNIGHTLY"`, 1)
	rec, env := do(t, router, http.MethodPost, "/api/v1/paychecks/compute", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "invalid_document" {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
	if !strings.Contains(env.Error.Message, "paycheck.period.frequency") {
		t.Fatalf("expected field path in message, got %q", env.Error.Message)
	}
}

func TestComputeRequiresAdmin(t *testing.T) {
	router := newTestRouter(newFakeService(), &auth.UserContext{UserID: "u-view", Role: auth.RoleViewer})

	rec, _ := do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec, _ = do(t, router, http.MethodPost, "/api/v1/paychecks/preview", scenarioJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected viewer preview to succeed, got %d", rec.Code)
	}
}

func TestAnonymousIsRejected(t *testing.T) {
	router := newTestRouter(newFakeService(), nil)

	rec, _ := do(t, router, http.MethodGet, "/api/v1/paychecks/chk-1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestEmployerScopeHidesOtherPaychecks(t *testing.T) {
	svc := newFakeService()
	do(t, newTestRouter(svc, admin()), http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)

	scoped := newTestRouter(svc, &auth.UserContext{UserID: "u-2", EmployerID: "er-2", Role: auth.RoleAdmin})
	rec, _ := do(t, scoped, http.MethodGet, "/api/v1/paychecks/chk-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other employer, got %d", rec.Code)
	}
	rec, _ = do(t, scoped, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 computing for other employer, got %d", rec.Code)
	}
}

func TestVoidTwiceConflicts(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc, admin())
	do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)

	rec, _ := do(t, router, http.MethodPost, "/api/v1/paychecks/chk-1/void", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, env := do(t, router, http.MethodPost, "/api/v1/paychecks/chk-1/void", "")
	if rec.Code != http.StatusConflict || env.Error.Code != "already_voided" {
		t.Fatalf("expected 409 already_voided, got %d %+v", rec.Code, env.Error)
	}
}

func TestGetUnknownPaycheck(t *testing.T) {
	router := newTestRouter(newFakeService(), admin())

	rec, env := do(t, router, http.MethodGet, "/api/v1/paychecks/missing", "")
	if rec.Code != http.StatusNotFound || env.Error.Code != "not_found" {
		t.Fatalf("expected 404, got %d %+v", rec.Code, env.Error)
	}
}

func TestPayslipAndLinesDownloads(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc, admin())
	do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)

	rec, _ := do(t, router, http.MethodGet, "/api/v1/paychecks/chk-1/payslip", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected payslip response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/paychecks/chk-1/lines.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "paycheck_id,employee_id,section,code,description,units,rate,basis,amount" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[len(lines)-1] != "chk-1,ee-1,total,NET,Net pay,,,,100.00" {
		t.Fatalf("unexpected last line: %q", lines[len(lines)-1])
	}
}

func TestBatchValidation(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc, admin())

	rec, env := do(t, router, http.MethodPost, "/api/v1/paychecks/batch", `{"scenarios": []}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %d %+v", rec.Code, env.Error)
	}

	second := strings.Replace(strings.Replace(scenarioJSON, `"chk-1"`, `"chk-2"`, 1), `"ee-1"`, `"ee-2"`, 1)
	rec, _ = do(t, router, http.MethodPost, "/api/v1/paychecks/batch", `{"scenarios": [`+scenarioJSON+`,`+second+`]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.computed) != 2 || svc.computed[1].Input.EmployeeID != "ee-2" {
		t.Fatalf("unexpected batch: %+v", svc.computed)
	}
}

func TestYtdYearValidation(t *testing.T) {
	router := newTestRouter(newFakeService(), admin())

	rec, _ := do(t, router, http.MethodGet, "/api/v1/employers/er-1/employees/ee-1/ytd?year=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec, env := do(t, router, http.MethodGet, "/api/v1/employers/er-1/employees/ee-1/ytd", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, _ := env.Data.(map[string]any)
	if data["year"] != float64(2025) {
		t.Fatalf("expected default year 2025, got %v", data["year"])
	}
}

func TestServiceErrorMapping(t *testing.T) {
	svc := newFakeService()
	svc.err = &payroll.YtdYearMismatchError{PriorYear: 2024, CheckYear: 2025}
	router := newTestRouter(svc, admin())

	rec, env := do(t, router, http.MethodPost, "/api/v1/paychecks/preview", scenarioJSON)
	if rec.Code != http.StatusUnprocessableEntity || env.Error.Code != "ytd_year_mismatch" {
		t.Fatalf("expected 422, got %d %+v", rec.Code, env.Error)
	}

	svc.err = fmt.Errorf("record paycheck p1: %w", payroll.ErrYtdConflict)
	rec, env = do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)
	if rec.Code != http.StatusConflict || env.Error.Code != "ytd_conflict" {
		t.Fatalf("expected 409 ytd_conflict, got %d %+v", rec.Code, env.Error)
	}
}

func TestActivityRecordsComputeAndVoid(t *testing.T) {
	svc := newFakeService()
	log := &fakeActivity{}
	withLog := func(h *Handler) { h.Activity = log }
	router := newTestRouter(svc, admin(), withLog)

	do(t, router, http.MethodPost, "/api/v1/paychecks/compute", scenarioJSON)
	do(t, router, http.MethodPost, "/api/v1/paychecks/chk-1/void", "")
	if len(log.events) != 2 {
		t.Fatalf("expected two events, got %+v", log.events)
	}
	if log.events[0].Action != activity.ActionPaycheckComputed || log.events[1].Action != activity.ActionPaycheckVoided {
		t.Fatalf("unexpected actions: %+v", log.events)
	}
	if log.events[1].ActorID != "u-admin" || log.events[1].EntityID != "chk-1" || log.events[1].RequestID == "" {
		t.Fatalf("unexpected void event: %+v", log.events[1])
	}

	rec, env := do(t, router, http.MethodGet, "/api/v1/employers/er-1/activity?action=paycheck.voided&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := env.Data.(map[string]any)
	if data["total"] != float64(1) || data["limit"] != float64(10) {
		t.Fatalf("unexpected page: %v", data)
	}

	viewer := newTestRouter(svc, &auth.UserContext{UserID: "u-view", Role: auth.RoleViewer}, withLog)
	rec, _ = do(t, viewer, http.MethodGet, "/api/v1/employers/er-1/activity", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}
}

func TestActivityQueryValidation(t *testing.T) {
	router := newTestRouter(newFakeService(), admin(), func(h *Handler) { h.Activity = &fakeActivity{} })

	rec, env := do(t, router, http.MethodGet, "/api/v1/employers/er-1/activity?action=deleted&from=2025-02-01&to=2025-01-01", "")
	if rec.Code != http.StatusBadRequest || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %d %+v", rec.Code, env.Error)
	}
	details, _ := env.Error.Details.(map[string]any)
	fields, _ := details["fields"].([]any)
	if len(fields) != 3 {
		t.Fatalf("expected action, from and to issues, got %v", fields)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/employers/er-1/activity?from=2025-01-01&to=2025-01-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestActivityDisabled(t *testing.T) {
	router := newTestRouter(newFakeService(), admin())

	rec, _ := do(t, router, http.MethodGet, "/api/v1/employers/er-1/activity", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an activity log, got %d", rec.Code)
	}
}
