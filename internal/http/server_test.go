package httpapi

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptportal-backend-go/internal/contactcache"
	"scriptportal-backend-go/internal/rubric"
	"scriptportal-backend-go/internal/services"
	"scriptportal-backend-go/internal/testutil"
)

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/admin/dashboard", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = do(t, s, http.MethodGet, "/api/admin/dashboard", tokenFor(t, s, "j1", services.RoleContractor), nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = do(t, s, http.MethodGet, "/api/contractor/me", tokenFor(t, s, "a1", services.RoleAdmin), nil)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestApplyDiscountFallsBackToCatalogTiers(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Query(`SELECT value FROM site_settings WHERE key = \$1`, []string{"value"}).WithArgs("pricing_tiers"),
	)
	rec := do(t, s, http.MethodPost, "/api/public/discounts/apply", "", DiscountRequest{TierID: "premium", Code: " honey25"})
	expectStatus(t, rec, http.StatusOK)
	var result services.DiscountResult
	decodeBody(t, rec, &result)
	if result.Amount != 56250 || result.OriginalAmount != 75000 || result.Code != "HONEY25" {
		t.Fatalf("unexpected discount %#v", result)
	}
	script.Verify(t)
}

func TestApplyDiscountUnknownCode(t *testing.T) {
	s, _ := newTestServer(t,
		testutil.Query(`FROM site_settings`, []string{"value"}),
	)
	rec := do(t, s, http.MethodPost, "/api/public/discounts/apply", "", DiscountRequest{TierID: "premium", Code: "BOGUS"})
	expectStatus(t, rec, http.StatusBadRequest)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	if body.Message != "Invalid discount code" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestPaymentWebhookChecksSecret(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Exec(`UPDATE scripts SET payment_status = \$1 WHERE id = \$2`, 1).WithArgs("paid", "s1"),
		testutil.Exec(`SELECT log_activity`, 1),
	)
	event := services.PaymentEvent{ScriptID: "s1", Status: "paid"}

	rec := do(t, s, http.MethodPost, "/api/public/payments/webhook", "", event)
	expectStatus(t, rec, http.StatusUnauthorized)

	raw := `{"scriptId":"s1","status":"paid"}`
	req := httptest.NewRequest(http.MethodPost, "/api/public/payments/webhook", strings.NewReader(raw))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	out := httptest.NewRecorder()
	s.Router(req.Context()).ServeHTTP(out, req)
	expectStatus(t, out, http.StatusOK)
	script.Verify(t)
}

func TestPaymentWebhookRejectsPendingStatus(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/public/payments/webhook", strings.NewReader(`{"scriptId":"s1","status":"pending"}`))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	rec := httptest.NewRecorder()
	s.Router(req.Context()).ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSubmitContactAcceptedWhenOnlyCached(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Exec(`INSERT INTO contacts`, 0).WillFail(errors.New("connection refused")),
	)
	cache, err := contactcache.Open(filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	s.Contacts.Cache = cache

	rec := do(t, s, http.MethodPost, "/api/public/contacts", "", ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "Hello"})
	expectStatus(t, rec, http.StatusAccepted)
	var body ContactResponse
	decodeBody(t, rec, &body)
	if body.Synced || body.Contact.ID == "" {
		t.Fatalf("unexpected response %#v", body)
	}
	script.Verify(t)
}

func TestSubmitContactValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/public/contacts", "", ContactRequest{Name: "Ada", Email: "not-an-email", Message: "Hello"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSaveRubricRejectsOutOfRangeRating(t *testing.T) {
	s, script := newTestServer(t)
	nine := 9
	fields := rubric.Fields{Scores: map[string]rubric.Score{"plot": {Rating: &nine}}}
	rec := do(t, s, http.MethodPut, "/api/contractor/reviews/r1/rubric", tokenFor(t, s, "j1", services.RoleContractor), fields)
	expectStatus(t, rec, http.StatusBadRequest)
	if len(script.Executed()) != 0 {
		t.Fatalf("validation should happen before any query: %v", script.Executed())
	}
}

func TestOpenWorkspaceForbiddenForOtherContractor(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Query(`FROM scripts\s+WHERE id = \$1`, scriptCols, scriptRow("s1", "assigned", "j2")),
	)
	rec := do(t, s, http.MethodPost, "/api/contractor/scripts/s1/workspace", tokenFor(t, s, "j1", services.RoleContractor), nil)
	expectStatus(t, rec, http.StatusForbidden)
	script.Verify(t)
}

func TestSubmitIncompleteReviewWritesNothing(t *testing.T) {
	partial := reviewRow("r1", "s1", "j1", "in_progress", map[string]driver.Value{
		"title_response": "A fine title",
		"plot_rating":    int64(4),
	})
	s, script := newTestServer(t,
		testutil.Query(`FROM script_reviews\s+WHERE id = \$1`, reviewCols(), partial),
		testutil.Query(`FROM scripts\s+WHERE id = \$1`, scriptCols, scriptRow("s1", "assigned", "j1")),
		testutil.Query(`FROM script_reviews\s+WHERE id = \$1`, reviewCols(), partial),
	)
	rec := do(t, s, http.MethodPost, "/api/contractor/reviews/r1/submit", tokenFor(t, s, "j1", services.RoleContractor), SubmitRequest{OverallNotes: "done"})
	expectStatus(t, rec, http.StatusBadRequest)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	if body.Message != "Please complete all required fields" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	script.Verify(t)
}

func TestSubmitReviewForReassignedScriptConflicts(t *testing.T) {
	complete := reviewRow("r1", "s1", "j1", "in_progress", map[string]driver.Value{
		"title_response":    "A fine title",
		"plot_rating":       int64(4),
		"characters_rating": int64(5),
	})
	s, script := newTestServer(t,
		testutil.Query(`FROM script_reviews\s+WHERE id = \$1`, reviewCols(), complete),
		testutil.Query(`FROM scripts\s+WHERE id = \$1`, scriptCols, scriptRow("s1", "assigned", "j2")),
	)
	rec := do(t, s, http.MethodPost, "/api/contractor/reviews/r1/submit", tokenFor(t, s, "j1", services.RoleContractor), nil)
	expectStatus(t, rec, http.StatusConflict)
	script.Verify(t)
}

func TestExportReviewStreamsPDF(t *testing.T) {
	values := map[string]driver.Value{"title_response": "Strong hook", "plot_rating": int64(4), "plot_notes": "Clear arc"}
	s, script := newTestServer(t,
		testutil.Query(`FROM script_reviews\s+WHERE id = \$1`, reviewCols(), reviewRow("r1", "s1", "j1", "submitted", values)),
		testutil.Query(`FROM scripts\s+WHERE id = \$1`, scriptCols, scriptRow("s1", "reviewed", "j1")),
		testutil.Query(`SELECT name FROM judges`, []string{"name"}, []driver.Value{"Jo Reader"}),
		testutil.Query(`FROM script_page_notes`, []string{"id", "script_review_id", "page_number", "note_content", "updated_at"},
			[]driver.Value{"n1", "r1", int64(3), "Great cold open", testEpoch}),
		testutil.Query(`FROM script_page_rubrics`, append([]string{"id", "script_review_id", "page_number", "updated_at"}, rubric.Columns()...)),
	)
	rec := do(t, s, http.MethodGet, "/api/admin/reviews/r1/export", tokenFor(t, s, "a1", services.RoleAdmin), nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := `attachment; filename="rubric_pilot_season_2026-03-01.pdf"`
	if cd := rec.Header().Get("Content-Disposition"); cd != want {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
	script.Verify(t)
}

func TestSignedDownloadServesStoredFile(t *testing.T) {
	s, _ := newTestServer(t)
	dir := filepath.Join(s.Config.StoragePath, services.BucketScripts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1_pilot.pdf"), []byte("%PDF-1.4 pilot"), 0o644); err != nil {
		t.Fatal(err)
	}
	signed, err := s.Storage.SignedURL(services.BucketScripts, "1_pilot.pdf")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	path := strings.TrimPrefix(signed, s.Config.PublicBaseURL)
	rec := do(t, s, http.MethodGet, path, "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "%PDF-1.4 pilot" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/storage/signed?token=bogus", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = do(t, s, http.MethodGet, "/storage/scripts/1_pilot.pdf", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestAdminLoginIssuesAdminToken(t *testing.T) {
	s, _ := newTestServer(t)
	hash, err := s.Tokens.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	s2, script := newTestServer(t,
		testutil.Query(`FROM admins\s+WHERE lower\(email\) = \$1`,
			[]string{"id", "email", "name", "password_hash", "created_at", "last_login_at"},
			[]driver.Value{"a1", "admin@example.com", "Administrator", hash, testEpoch, nil}).WithArgs("admin@example.com"),
		testutil.Exec(`UPDATE admins SET last_login_at`, 1),
	)
	rec := do(t, s2, http.MethodPost, "/api/auth/admin/login", "", LoginRequest{Email: " Admin@Example.com", Password: "correct horse"})
	expectStatus(t, rec, http.StatusOK)
	var body TokenResponse
	decodeBody(t, rec, &body)
	if body.Account.Role != services.RoleAdmin || body.Account.ID != "a1" {
		t.Fatalf("unexpected account %#v", body.Account)
	}
	_, claims, err := s2.Tokens.ParseToken(body.AccessToken)
	if err != nil || !hasRole(services.ClaimRoles(claims), services.RoleAdmin) {
		t.Fatalf("access token should carry the admin role: %v %v", claims, err)
	}
	script.Verify(t)
}

func TestRefreshRejectsDeclinedContractor(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Query(`FROM judges\s+WHERE id = \$1`,
			[]string{"id", "name", "email", "password_hash", "status", "specialization", "current_workload",
				"total_scripts_reviewed", "availability", "created_at"},
			[]driver.Value{"j1", "Jo Reader", "jo@example.com", "x", "declined", nil, int64(0), int64(0), nil, testEpoch}),
	)
	refresh, err := s.Tokens.CreateRefreshToken("j1", []string{services.RoleContractor})
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, s, http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: refresh})
	expectStatus(t, rec, http.StatusUnauthorized)
	script.Verify(t)

	access := tokenFor(t, s, "j1", services.RoleContractor)
	rec = do(t, s, http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: access})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestPutSettingRequiresValue(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPut, "/api/admin/settings/notifications", tokenFor(t, s, "a1", services.RoleAdmin), map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAssignScriptUnknownContractor(t *testing.T) {
	s, _ := newTestServer(t,
		testutil.Query(`FROM scripts\s+WHERE id = \$1`, scriptCols, scriptRow("s1", "pending", nil)),
		testutil.Query(`FROM judges\s+WHERE id = \$1`, []string{"id"}),
	)
	rec := do(t, s, http.MethodPut, "/api/admin/scripts/s1/assignment", tokenFor(t, s, "a1", services.RoleAdmin), map[string]string{"judgeId": "ghost"})
	expectStatus(t, rec, http.StatusNotFound)
}

func multipartScript(t *testing.T, tierID string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":       "Pilot Season",
		"authorName":  "Ann Writer",
		"authorEmail": "ann@example.com",
		"tierId":      tierID,
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	part, err := form.CreateFormFile("file", "pilot.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("%PDF-1.4 pilot"))
	if err := form.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, form.FormDataContentType()
}

func TestSubmitScriptOnPaidTierReturnsCheckoutURL(t *testing.T) {
	var checkout services.CheckoutRequest
	payments := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&checkout); err != nil {
			t.Errorf("decode checkout: %v", err)
		}
		WriteJSON(w, http.StatusOK, map[string]string{"url": "https://pay.test/session/1"})
	}))
	defer payments.Close()

	s, script := newTestServer(t,
		testutil.Query(`FROM site_settings`, []string{"value"}),
		testutil.Exec(`INSERT INTO scripts`, 1),
		testutil.Exec(`SELECT log_activity`, 1),
	)
	s.Payments = services.PaymentClient{URL: payments.URL, HTTPClient: payments.Client()}

	body, contentType := multipartScript(t, "standard")
	req := httptest.NewRequest(http.MethodPost, "/api/public/scripts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router(req.Context()).ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)

	var resp SubmissionResponse
	decodeBody(t, rec, &resp)
	if resp.CheckoutURL != "https://pay.test/session/1" {
		t.Fatalf("unexpected checkout url %q", resp.CheckoutURL)
	}
	if resp.Script.PaymentStatus != "pending" || resp.Script.Status != "pending" {
		t.Fatalf("unexpected script %#v", resp.Script)
	}
	if checkout.Amount != 50000 || checkout.TierID != "standard" || checkout.ScriptID != resp.Script.ID {
		t.Fatalf("unexpected checkout request %#v", checkout)
	}
	script.Verify(t)
}

func TestSubmitScriptOnFreeTierSkipsCheckout(t *testing.T) {
	s, script := newTestServer(t,
		testutil.Query(`FROM site_settings`, []string{"value"}),
		testutil.Exec(`INSERT INTO scripts`, 1),
		testutil.Exec(`SELECT log_activity`, 1),
	)
	body, contentType := multipartScript(t, "free")
	req := httptest.NewRequest(http.MethodPost, "/api/public/scripts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router(req.Context()).ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)

	var resp SubmissionResponse
	decodeBody(t, rec, &resp)
	if resp.CheckoutURL != "" || resp.Script.PaymentStatus != "paid" {
		t.Fatalf("free tier should be paid without checkout: %#v", resp)
	}
	entries, err := os.ReadDir(filepath.Join(s.Config.StoragePath, services.BucketScripts))
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_pilot.pdf") {
		t.Fatalf("expected the stored upload, got %v (%v)", entries, err)
	}
	script.Verify(t)
}
