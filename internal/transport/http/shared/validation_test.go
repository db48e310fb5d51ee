package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestValidatorCollectsIssuesInFieldOrder(t *testing.T) {
	v := NewValidator()
	v.Count("scenarios", 0, 1, 500)
	v.OneOf("action", "Deleted", []string{"paycheck.computed"})
	from := v.Day("from", "2025-02-01")
	to := v.Day("to", "2025-01-01")
	v.DayRange("from", from, "to", to)

	issues := v.Issues()
	if len(issues) != 4 {
		t.Fatalf("expected 4 issues, got %+v", issues)
	}
	want := []string{"action", "from", "scenarios", "to"}
	for i, field := range want {
		if issues[i].Field != field {
			t.Fatalf("issue %d: field %q, want %q", i, issues[i].Field, field)
		}
	}
}

func TestValidatorAcceptsGoodValues(t *testing.T) {
	v := NewValidator()
	v.Count("scenarios", 3, 1, 500)
	if got := v.OneOf("action", " PAYCHECK.VOIDED ", []string{"paycheck.voided"}); got != "paycheck.voided" {
		t.Fatalf("unexpected action %q", got)
	}
	if got := v.Year("year", "", 2025); got != 2025 {
		t.Fatalf("expected fallback year, got %d", got)
	}
	if got := v.Day("from", "2025-03-04"); !got.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
	if len(v.Issues()) != 0 {
		t.Fatalf("unexpected issues %+v", v.Issues())
	}
}

func TestYearRejectsGarbage(t *testing.T) {
	v := NewValidator()
	if got := v.Year("year", "25", 2025); got != 2025 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if len(v.Issues()) != 1 {
		t.Fatalf("expected one issue, got %+v", v.Issues())
	}
}

func TestPage(t *testing.T) {
	v := NewValidator()
	page := v.Page(url.Values{"limit": {"25"}, "offset": {"50"}}, 50, 200)
	if page != (Page{Limit: 25, Offset: 50}) || len(v.Issues()) != 0 {
		t.Fatalf("unexpected page %+v issues %+v", page, v.Issues())
	}

	page = v.Page(url.Values{"limit": {"500"}, "offset": {"-1"}}, 50, 200)
	if page != (Page{Limit: 50}) {
		t.Fatalf("expected defaults on bad input, got %+v", page)
	}
	if len(v.Issues()) != 2 {
		t.Fatalf("expected limit and offset issues, got %+v", v.Issues())
	}
}

func TestRejectWritesFieldDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	if NewValidator().Reject(rec, "req-1") {
		t.Fatal("empty validator should not reject")
	}

	v := NewValidator()
	v.Add("year", "must be a four digit year")
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []FieldIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "validation_error" || len(body.Error.Details.Fields) != 1 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
