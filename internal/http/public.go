package httpapi

import (
	"context"
	"crypto/subtle"
	"io"
	"log"
	"net/http"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/services"
)

type TiersResponse struct {
	Items []models.Tier `json:"items"`
}

type DiscountRequest struct {
	TierID string `json:"tierId"`
	Code   string `json:"code"`
}

type SubmissionResponse struct {
	Script      models.Script           `json:"script"`
	Tier        models.Tier             `json:"tier"`
	Discount    services.DiscountResult `json:"discount"`
	CheckoutURL string                  `json:"checkoutUrl,omitempty"`
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type ContactResponse struct {
	Contact models.Contact `json:"contact"`
	Synced  bool           `json:"synced"`
}

// tiers prefers the pricing_tiers setting and falls back to the catalog.
func (s *Server) tiers(ctx context.Context) []models.Tier {
	tiers, err := services.LoadTiers(ctx, s.DB, s.Tiers)
	if err != nil {
		log.Printf("tiers: load setting: %v", err)
		return s.Tiers
	}
	return tiers
}

func (s *Server) notify(fn func(ctx context.Context, n *services.Notifier)) {
	if s.Notifier == nil {
		return
	}
	go fn(context.Background(), s.Notifier)
}

func (s *Server) PublicTiers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, TiersResponse{Items: s.tiers(r.Context())})
}

func (s *Server) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tier, ok := services.FindTier(s.tiers(r.Context()), req.TierID)
	if !ok {
		WriteError(w, http.StatusBadRequest, "Unknown pricing tier")
		return
	}
	result, err := services.ApplyDiscount(tier.Amount, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) SubmitScript(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	in := services.ScriptInput{
		Title:        r.FormValue("title"),
		AuthorName:   r.FormValue("authorName"),
		AuthorEmail:  r.FormValue("authorEmail"),
		AuthorPhone:  r.FormValue("authorPhone"),
		TierID:       r.FormValue("tierId"),
		DiscountCode: r.FormValue("discountCode"),
	}
	var body io.Reader
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		in.FileName = header.Filename
		body = file
	}
	sub, err := services.CreateScript(r.Context(), s.DB, s.Storage, s.tiers(r.Context()), in, body, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Hub.Publish(services.EventScriptCreated, sub.Script)
	s.notify(func(ctx context.Context, n *services.Notifier) { n.ScriptSubmitted(ctx, sub.Script) })

	resp := SubmissionResponse{Script: sub.Script, Tier: sub.Tier, Discount: sub.Discount}
	if sub.Script.PaymentStatus == models.PaymentPending {
		checkoutURL, err := s.Payments.CreateCheckout(r.Context(), services.NewCheckoutRequest(sub))
		if err != nil {
			log.Printf("checkout for script %s: %v", sub.Script.ID, err)
			WriteError(w, http.StatusBadGateway, "Your script was received but checkout could not be started")
			return
		}
		resp.CheckoutURL = checkoutURL
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// SubmitContact answers 201 when the message reached the database and 202
// when it is only held in the local cache.
func (s *Server) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contact, synced, err := s.Contacts.Submit(r.Context(), services.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	}, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Hub.Publish(services.EventContactReceived, contact)
	s.notify(func(ctx context.Context, n *services.Notifier) { n.ContactReceived(ctx, contact) })
	status := http.StatusCreated
	if !synced {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, ContactResponse{Contact: contact, Synced: synced})
}

func (s *Server) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := s.Config.PaymentWebhookSecret
	if secret == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	given := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	var event services.PaymentEvent
	if !decodeJSON(w, r, &event) {
		return
	}
	status, err := event.Validate()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := services.MarkPayment(r.Context(), s.DB, event.ScriptID, string(status)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
