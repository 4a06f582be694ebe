package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scriptportal-backend-go/internal/models"
)

type CheckoutRequest struct {
	Title              string `json:"title"`
	AuthorName         string `json:"authorName"`
	AuthorEmail        string `json:"authorEmail"`
	AuthorPhone        string `json:"authorPhone,omitempty"`
	Amount             int64  `json:"amount"`
	OriginalAmount     int64  `json:"originalAmount"`
	DiscountCode       string `json:"discountCode,omitempty"`
	DiscountPercentage int    `json:"discountPercentage,omitempty"`
	TierName           string `json:"tierName"`
	TierID             string `json:"tierId"`
	TierDescription    string `json:"tierDescription"`
	ScriptID           string `json:"scriptId"`
}

func NewCheckoutRequest(sub ScriptSubmission) CheckoutRequest {
	req := CheckoutRequest{
		Title:              sub.Script.Title,
		AuthorName:         sub.Script.AuthorName,
		AuthorEmail:        sub.Script.AuthorEmail,
		Amount:             sub.Discount.Amount,
		OriginalAmount:     sub.Discount.OriginalAmount,
		DiscountCode:       sub.Discount.Code,
		DiscountPercentage: sub.Discount.Percentage,
		TierName:           sub.Tier.Name,
		TierID:             sub.Tier.ID,
		TierDescription:    sub.Tier.Description,
		ScriptID:           sub.Script.ID,
	}
	if sub.Script.AuthorPhone != nil {
		req.AuthorPhone = *sub.Script.AuthorPhone
	}
	return req
}

// PaymentClient calls the hosted checkout-session function.
type PaymentClient struct {
	URL        string
	HTTPClient *http.Client
}

func (p PaymentClient) Enabled() bool {
	return strings.TrimSpace(p.URL) != ""
}

// CreateCheckout returns the checkout URL for a priced submission.
func (p PaymentClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if !p.Enabled() {
		return "", ErrConflict("Payments are not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", WrapError(err, "checkout request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", WrapError(err, "read checkout response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("checkout function returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", WrapError(err, "decode checkout response")
	}
	if out.URL == "" {
		if out.Error != "" {
			return "", fmt.Errorf("checkout function: %s", out.Error)
		}
		return "", fmt.Errorf("checkout function returned no url")
	}
	return out.URL, nil
}

// PaymentEvent is the body the payment provider posts to the webhook.
type PaymentEvent struct {
	ScriptID string `json:"scriptId"`
	Status   string `json:"status"`
}

func (e PaymentEvent) Validate() (models.PaymentStatus, error) {
	if strings.TrimSpace(e.ScriptID) == "" {
		return "", ErrBadRequest("scriptId is required")
	}
	status, err := models.ParsePaymentStatus(e.Status)
	if err != nil || status == models.PaymentPending {
		return "", ErrBadRequest("status must be paid or failed")
	}
	return status, nil
}
