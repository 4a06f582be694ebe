package services

import (
	"math"
	"strings"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
)

// DefaultTiers is used when neither the pricing_tiers setting nor a catalog
// file provides tiers. Amounts are in cents.
var DefaultTiers = []models.Tier{
	{ID: "free", Name: "Free Read", Description: "Test submission with a short rubric read.", Amount: 0, Test: true, Granularity: rubric.WholeScript},
	{ID: "standard", Name: "Standard Coverage", Description: "Full rubric with notes on every criterion.", Amount: 50000, Granularity: rubric.WholeScript},
	{ID: "premium", Name: "Premium Coverage", Description: "Full rubric plus page notes from the reader.", Amount: 75000, Granularity: rubric.WholeScript},
	{ID: "page-by-page", Name: "Page-by-Page Coverage", Description: "A complete rubric for every page of the script.", Amount: 100000, Granularity: rubric.PerPage},
}

// discountCodes maps an upper-cased code to its percentage off.
var discountCodes = map[string]int{
	"HONEY25":   25,
	"WELCOME10": 10,
}

var ErrInvalidDiscount = ErrBadRequest("Invalid discount code")

type DiscountResult struct {
	Code           string `json:"code,omitempty"`
	Percentage     int    `json:"percentage,omitempty"`
	Amount         int64  `json:"amount"`
	OriginalAmount int64  `json:"originalAmount"`
}

// ApplyDiscount returns the amount after the code's percentage is taken off.
// An empty code leaves the amount untouched; an unknown one is an error.
func ApplyDiscount(amount int64, code string) (DiscountResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	result := DiscountResult{Amount: amount, OriginalAmount: amount}
	if normalized == "" {
		return result, nil
	}
	pct, ok := discountCodes[normalized]
	if !ok {
		return result, ErrInvalidDiscount
	}
	result.Code = normalized
	result.Percentage = pct
	result.Amount = int64(math.Round(float64(amount) * (1 - float64(pct)/100)))
	return result, nil
}

func FindTier(tiers []models.Tier, id string) (models.Tier, bool) {
	id = strings.TrimSpace(id)
	for _, tier := range tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return models.Tier{}, false
}

// IsPrepaid reports whether a submission needs no checkout.
func IsPrepaid(tier models.Tier, amount int64) bool {
	return tier.Test || amount <= 0
}
