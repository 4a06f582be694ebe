package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"scriptportal-backend-go/internal/models"
)

func TestCreateCheckoutPostsSubmission(t *testing.T) {
	var got CheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://checkout.example/session"})
	}))
	defer srv.Close()

	tier, _ := FindTier(DefaultTiers, "premium")
	discount, _ := ApplyDiscount(tier.Amount, "HONEY25")
	sub := ScriptSubmission{
		Script:   models.Script{ID: "s1", Title: "Pilot", AuthorName: "Ann", AuthorEmail: "ann@example.com"},
		Tier:     tier,
		Discount: discount,
	}
	url, err := PaymentClient{URL: srv.URL}.CreateCheckout(context.Background(), NewCheckoutRequest(sub))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if url != "https://checkout.example/session" {
		t.Fatalf("unexpected url %s", url)
	}
	if got.Amount != 56250 || got.OriginalAmount != 75000 || got.DiscountPercentage != 25 || got.TierID != "premium" {
		t.Fatalf("unexpected payload %#v", got)
	}
}

func TestCreateCheckoutSurfacesFunctionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"stripe down"}`))
	}))
	defer srv.Close()
	if _, err := (PaymentClient{URL: srv.URL}).CreateCheckout(context.Background(), CheckoutRequest{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPaymentEventValidate(t *testing.T) {
	if _, err := (PaymentEvent{ScriptID: "s1", Status: "pending"}).Validate(); err == nil {
		t.Fatalf("pending is not a webhook outcome")
	}
	status, err := PaymentEvent{ScriptID: "s1", Status: "PAID"}.Validate()
	if err != nil || status != models.PaymentPaid {
		t.Fatalf("unexpected %v %v", status, err)
	}
}
