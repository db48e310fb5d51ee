package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"payengine/internal/auth"
	"payengine/internal/platform/config"
	"payengine/internal/transport/http/api"
)

func integrationConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		Environment:        "test",
		MigrationsDir:      "../../../migrations",
		RunMigrations:      true,
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 1000,
		BatchConcurrency:   4,
		DefaultTraceLevel:  "AUDIT",
		EngineTimeout:      5 * time.Second,
		MetricsEnabled:     true,
	}
}

func postJSON(t *testing.T, client *http.Client, url, token, body string, headers map[string]string) (int, api.Envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func getJSON(t *testing.T, client *http.Client, url, token string) (int, api.Envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func TestComputeReplayVoidAndActivity(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := New(context.Background(), integrationConfig(dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	suffix := time.Now().UnixNano()
	employerID := fmt.Sprintf("er-it-%d", suffix)
	paycheckID := fmt.Sprintf("chk-it-%d", suffix)
	token, err := auth.GenerateToken("test-secret", auth.Claims{UserID: "u-it", EmployerID: employerID, Role: auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	token = "Bearer " + token

	body := fmt.Sprintf(`{"paycheck": {
		"paycheckId": %q, "employerId": %q, "employeeId": "ee-1",
		"period": {"start": "2025-01-01", "end": "2025-01-14", "check": "2025-01-17", "frequency": "BIWEEKLY"},
		"employee": {"compensation": {"kind": "HOURLY", "hourlyRate": "20.00"}},
		"time": {"regularHours": "80"}
	}}`, paycheckID, employerID)
	key := map[string]string{"Idempotency-Key": fmt.Sprintf("it-%d", suffix)}

	status, first := postJSON(t, client, ts.URL+"/api/v1/paychecks/compute", token, body, key)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", status, first.Error)
	}
	status, replay := postJSON(t, client, ts.URL+"/api/v1/paychecks/compute", token, body, key)
	if status != http.StatusCreated {
		t.Fatalf("expected replay 201, got %d %+v", status, replay.Error)
	}
	var count int
	if err := app.DB.QueryRow(context.Background(), "SELECT COUNT(1) FROM paychecks WHERE id = $1", paycheckID).Scan(&count); err != nil {
		t.Fatalf("count paychecks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored paycheck after replay, got %d", count)
	}

	status, env := getJSON(t, client, ts.URL+"/api/v1/employers/"+employerID+"/employees/ee-1/ytd?year=2025", token)
	if status != http.StatusOK {
		t.Fatalf("expected ytd 200, got %d", status)
	}
	ytd, _ := env.Data.(map[string]any)
	if ytd["year"] != float64(2025) {
		t.Fatalf("unexpected ytd: %v", ytd)
	}

	status, env = postJSON(t, client, ts.URL+"/api/v1/paychecks/"+paycheckID+"/void", token, "", nil)
	if status != http.StatusCreated {
		t.Fatalf("expected void 201, got %d %+v", status, env.Error)
	}
	status, env = postJSON(t, client, ts.URL+"/api/v1/paychecks/"+paycheckID+"/void", token, "", nil)
	if status != http.StatusConflict {
		t.Fatalf("expected second void 409, got %d", status)
	}

	status, env = getJSON(t, client, ts.URL+"/api/v1/employers/"+employerID+"/activity", token)
	if status != http.StatusOK {
		t.Fatalf("expected activity 200, got %d %+v", status, env.Error)
	}
	page, _ := env.Data.(map[string]any)
	if page["total"] != float64(2) {
		t.Fatalf("expected compute and void events, got %v", page)
	}
}
