package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"pdr/internal/app/server"
	"pdr/internal/domain/auth"
	"pdr/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:             dbURL,
		MigrationsDir:           "../../../../migrations",
		JWTSecret:               "test-secret",
		DataEncryptionKey:       "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		Environment:             "test",
		SeedCEOEmail:            "ceo@test.local",
		SeedCEOName:             "Morgan Reid",
		SeedCEOPassword:         "ChangeMe123!",
		EmailFrom:               "no-reply@test.local",
		RunMigrations:           true,
		RunSeed:                 true,
		MaxBodyBytes:            1048576,
		RateLimitPerMinute:      1000,
		PDRMinGoals:             1,
		PDRMinBehaviors:         1,
		PDRRequireCEOItemReview: true,
	}
}

func TestFullReviewCycleJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	employeeEmail := fmt.Sprintf("journey-%d@example.com", time.Now().UnixNano())
	employeePassword := "Employee123!"
	createEmployeeUser(t, app, employeeEmail, employeePassword)

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	ceoToken := login(t, client, ts.URL, cfg.SeedCEOEmail, cfg.SeedCEOPassword)
	empToken := login(t, client, ts.URL, employeeEmail, employeePassword)

	valueID := firstCompanyValueID(t, client, ts.URL, empToken)

	// Employee drafts the plan.
	pdrID := createPDR(t, client, ts.URL, empToken)
	postJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/goals", empToken, map[string]any{
		"title":           "Ship the reporting pipeline",
		"description":     "Replace the manual exports",
		"targetOutcome":   "Automated weekly reports",
		"successCriteria": "Zero manual exports by Q3",
		"priority":        "HIGH",
	})
	postJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/goals", empToken, map[string]any{
		"title":    "Mentor two new hires",
		"priority": "MEDIUM",
	})
	postJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/behaviors", empToken, map[string]any{
		"companyValueId": valueID,
		"description":    "Keep customers in the loop on incidents",
	})

	if status := transition(t, client, ts.URL, pdrID, "submit", empToken, nil); status != "SUBMITTED" {
		t.Fatalf("expected SUBMITTED after submit, got %s", status)
	}

	// Booking the review meeting is a side flag, not a status change.
	if status := transition(t, client, ts.URL, pdrID, "book-meeting", ceoToken, nil); status != "SUBMITTED" {
		t.Fatalf("expected book-meeting to keep SUBMITTED, got %s", status)
	}

	// CEO reviews every item, then locks the plan.
	p := getPDR(t, client, ts.URL, pdrID, ceoToken)
	for _, goalID := range itemIDs(t, p, "goals") {
		putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/goals/ratings", ceoToken, map[string]any{
			"updates": []map[string]any{{"goalId": goalID, "ceoRating": 4, "ceoComments": "Solid plan"}},
		})
	}
	for _, behaviorID := range itemIDs(t, p, "behaviors") {
		putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/behaviors/ratings", ceoToken, map[string]any{
			"updates": []map[string]any{{"behaviorId": behaviorID, "ceoRating": 4}},
		})
	}

	// CEO fields stay hidden from the employee until completion.
	empView := getPDR(t, client, ts.URL, pdrID, empToken)
	goals := empView["goals"].([]any)
	if _, ok := goals[0].(map[string]any)["ceoRating"]; ok {
		t.Fatal("employee must not see CEO ratings before completion")
	}

	if status := transition(t, client, ts.URL, pdrID, "review", ceoToken, map[string]any{"expectedStatus": "SUBMITTED"}); status != "PLAN_LOCKED" {
		t.Fatalf("expected PLAN_LOCKED after review, got %s", status)
	}

	// Mid-year check-in.
	putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/mid-year", empToken, map[string]any{
		"progressSummary":  "Pipeline is in beta, mentoring on track",
		"employeeComments": "Need design input on the final reports",
	})
	if status := transition(t, client, ts.URL, pdrID, "mid-year/submit", empToken, nil); status != "MID_YEAR_SUBMITTED" {
		t.Fatalf("expected MID_YEAR_SUBMITTED, got %s", status)
	}
	if status := transition(t, client, ts.URL, pdrID, "mid-year/approve", ceoToken, map[string]any{"feedback": "Good progress, keep going"}); status != "MID_YEAR_APPROVED" {
		t.Fatalf("expected MID_YEAR_APPROVED, got %s", status)
	}

	// End-year self assessment.
	for _, goalID := range itemIDs(t, p, "goals") {
		putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/goals/ratings", empToken, map[string]any{
			"updates": []map[string]any{{"goalId": goalID, "employeeRating": 4, "employeeProgress": "Done"}},
		})
	}
	for _, behaviorID := range itemIDs(t, p, "behaviors") {
		putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/behaviors/ratings", empToken, map[string]any{
			"updates": []map[string]any{{"behaviorId": behaviorID, "employeeRating": 5}},
		})
	}
	putJSON(t, client, ts.URL+"/api/v1/pdrs/"+pdrID+"/end-year", empToken, map[string]any{
		"achievements":     "Shipped the pipeline, both hires ramped",
		"employeeComments": "Strong year",
	})
	if status := transition(t, client, ts.URL, pdrID, "end-year/submit", empToken, nil); status != "END_YEAR_SUBMITTED" {
		t.Fatalf("expected END_YEAR_SUBMITTED, got %s", status)
	}

	if status := transition(t, client, ts.URL, pdrID, "complete", ceoToken, map[string]any{"overallRating": 4}); status != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %s", status)
	}

	// After completion the employee sees the released CEO fields.
	finalView := getPDR(t, client, ts.URL, pdrID, empToken)
	finalGoals := finalView["goals"].([]any)
	if _, ok := finalGoals[0].(map[string]any)["ceoRating"]; !ok {
		t.Fatal("employee should see CEO ratings after completion")
	}

	transition(t, client, ts.URL, pdrID, "calibrate", ceoToken, nil)
	calibrated := getPDR(t, client, ts.URL, pdrID, ceoToken)
	if calibrated["calibratedAt"] == nil {
		t.Fatal("expected calibratedAt to be set")
	}

	// CEO fan-out notifications landed.
	unread := getJSON(t, client, ts.URL+"/api/v1/notifications/unread-count", ceoToken)
	var counts map[string]int
	if err := json.Unmarshal(unread.Data, &counts); err != nil {
		t.Fatalf("failed to decode unread count: %v", err)
	}
	if counts["unread"] == 0 {
		t.Fatal("expected CEO to have unread notifications")
	}
}

func TestEmployeeCannotSeeOthersPDR(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	suffix := time.Now().UnixNano()
	ownerEmail := fmt.Sprintf("owner-%d@example.com", suffix)
	otherEmail := fmt.Sprintf("other-%d@example.com", suffix)
	createEmployeeUser(t, app, ownerEmail, "Owner123!!")
	createEmployeeUser(t, app, otherEmail, "Other123!!")

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	ownerToken := login(t, client, ts.URL, ownerEmail, "Owner123!!")
	otherToken := login(t, client, ts.URL, otherEmail, "Other123!!")

	pdrID := createPDR(t, client, ts.URL, ownerToken)
	getJSONStatus(t, client, ts.URL+"/api/v1/pdrs/"+pdrID, otherToken, http.StatusNotFound)
}

func createEmployeeUser(t *testing.T, app *server.App, email, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if _, err := app.DB.Exec(context.Background(), `
    INSERT INTO users (email, name, role, password_hash, status)
    VALUES ($1,$2,'EMPLOYEE',$3,'active')
  `, email, "Journey Tester", hash); err != nil {
		t.Fatalf("failed to create employee user: %v", err)
	}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func createPDR(t *testing.T, client *http.Client, baseURL, token string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/pdrs", token, map[string]any{})
	p := decodePDR(t, resp)
	id, _ := p["id"].(string)
	if id == "" {
		t.Fatal("expected pdr id")
	}
	return id
}

func firstCompanyValueID(t *testing.T, client *http.Client, baseURL, token string) string {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/company-values", token)
	var payload map[string][]map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode company values: %v", err)
	}
	values := payload["companyValues"]
	if len(values) == 0 {
		t.Fatal("expected seeded company values")
	}
	id, _ := values[0]["id"].(string)
	return id
}

func transition(t *testing.T, client *http.Client, baseURL, pdrID, action, token string, body map[string]any) string {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	resp := postJSON(t, client, baseURL+"/api/v1/pdrs/"+pdrID+"/"+action, token, body)
	p := decodePDR(t, resp)
	status, _ := p["status"].(string)
	return status
}

func getPDR(t *testing.T, client *http.Client, baseURL, pdrID, token string) map[string]any {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/pdrs/"+pdrID, token)
	return decodePDR(t, resp)
}

func decodePDR(t *testing.T, resp envelope) map[string]any {
	t.Helper()
	var payload struct {
		PDR map[string]any `json:"pdr"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode pdr payload: %v", err)
	}
	if payload.PDR == nil {
		t.Fatal("expected pdr in payload")
	}
	return payload.PDR
}

func itemIDs(t *testing.T, p map[string]any, key string) []string {
	t.Helper()
	items, _ := p[key].([]any)
	var ids []string
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if id, ok := m["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		t.Fatalf("expected %s on the pdr", key)
	}
	return ids
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, body)
}

func putJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPut, url, token, body)
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d for %s %s: %s", resp.StatusCode, method, url, string(raw))
	}
	return env
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return env
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
}
