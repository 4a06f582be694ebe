package httpapi

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"scriptportal-backend-go/internal/autosave"
	"scriptportal-backend-go/internal/clock"
	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/rubric"
	"scriptportal-backend-go/internal/services"
	"scriptportal-backend-go/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:            "test-secret",
		JWTIssuer:            "scriptportal",
		AccessTTLSeconds:     3600,
		RefreshTTLSeconds:    7200,
		StoragePath:          t.TempDir(),
		PublicBaseURL:        "http://portal.test",
		SignedURLTTLSeconds:  900,
		PaymentWebhookSecret: "hook-secret",
	}
}

// newTestServer wires a server over a scripted database. Notifications are
// off so background sends never touch the script.
func newTestServer(t *testing.T, steps ...*testutil.Step) (*Server, *testutil.Script) {
	t.Helper()
	db, script := testutil.NewDB(t, steps...)
	fake := clock.NewFake(testEpoch)
	reviews := &services.Reviews{DB: db, Queue: autosave.New(fake, 2*time.Second, nil), Now: fake.Now}
	contacts := &services.Contacts{DB: db, Retention: 24 * time.Hour}
	s := NewServer(db, testConfig(t), reviews, contacts, nil, nil)
	s.Notifier = nil
	s.Now = fake.Now
	return s, script
}

func tokenFor(t *testing.T, s *Server, subject, role string) string {
	t.Helper()
	token, _, err := s.Tokens.CreateAccessToken(subject, subject+"@example.com", []string{role})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func do(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router(req.Context()).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

var scriptCols = []string{
	"id", "title", "author_name", "author_email", "author_phone", "file_url", "file_name", "file_key",
	"file_checksum", "amount", "original_amount", "discount_code", "tier_id", "tier_name", "granularity",
	"payment_status", "status", "assigned_judge_id", "created_at", "reviewed_at",
}

func scriptRow(id, status string, judgeID driver.Value) []driver.Value {
	return []driver.Value{
		id, "Pilot Season", "Ann Writer", "ann@example.com", nil, "http://portal.test/storage/scripts/1_pilot.pdf",
		"pilot.pdf", "1_pilot.pdf", nil, int64(50000), int64(50000), nil, "standard", "Standard Coverage",
		string(rubric.WholeScript), "paid", status, judgeID, testEpoch, nil,
	}
}

func reviewCols() []string {
	cols := []string{"id", "script_id", "judge_id", "status", "recommendation", "feedback", "overall_notes",
		"created_at", "updated_at", "submitted_at"}
	return append(cols, rubric.Columns()...)
}

func reviewRow(id, scriptID, judgeID, status string, values map[string]driver.Value) []driver.Value {
	row := []driver.Value{id, scriptID, judgeID, status, nil, nil, nil, testEpoch, testEpoch, nil}
	for _, col := range rubric.Columns() {
		row = append(row, values[col])
	}
	return row
}

