package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type ScriptStatus string

const (
	ScriptPending    ScriptStatus = "pending"
	ScriptAssigned   ScriptStatus = "assigned"
	ScriptReviewed   ScriptStatus = "reviewed"
	ScriptCompleted  ScriptStatus = "completed"
	ScriptIncomplete ScriptStatus = "incomplete"
)

// ParseScriptStatus accepts the five workflow states. The legacy verdicts
// "approved" and "declined" both collapse to completed.
func ParseScriptStatus(raw string) (ScriptStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch ScriptStatus(value) {
	case ScriptPending, ScriptAssigned, ScriptReviewed, ScriptCompleted, ScriptIncomplete:
		return ScriptStatus(value), nil
	}
	switch value {
	case "approved", "declined":
		return ScriptCompleted, nil
	}
	return "", fmt.Errorf("unknown script status %q", raw)
}

func (s *ScriptStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseScriptStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ScriptStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Terminal reports whether a script can no longer be reassigned.
func (s ScriptStatus) Terminal() bool {
	return s == ScriptReviewed || s == ScriptCompleted
}

var scriptTransitions = map[ScriptStatus][]ScriptStatus{
	ScriptPending:    {ScriptAssigned, ScriptIncomplete},
	ScriptAssigned:   {ScriptPending, ScriptReviewed, ScriptIncomplete},
	ScriptReviewed:   {ScriptCompleted, ScriptIncomplete},
	ScriptIncomplete: {ScriptPending, ScriptAssigned, ScriptCompleted},
	ScriptCompleted:  {},
}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to ScriptStatus) bool {
	for _, next := range scriptTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	value := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return value, nil
	}
	return "", fmt.Errorf("unknown payment status %q", raw)
}

func (p *PaymentStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParsePaymentStatus(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PaymentStatus) Value() (driver.Value, error) {
	return string(p), nil
}

type ContractorStatus string

const (
	ContractorPending  ContractorStatus = "pending"
	ContractorApproved ContractorStatus = "approved"
	ContractorDeclined ContractorStatus = "declined"
)

func ParseContractorStatus(raw string) (ContractorStatus, error) {
	value := ContractorStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case ContractorPending, ContractorApproved, ContractorDeclined:
		return value, nil
	}
	return "", fmt.Errorf("unknown contractor status %q", raw)
}

func (c *ContractorStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseContractorStatus(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ContractorStatus) Value() (driver.Value, error) {
	return string(c), nil
}

type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactRead      ContactStatus = "read"
	ContactResponded ContactStatus = "responded"
)

func ParseContactStatus(raw string) (ContactStatus, error) {
	value := ContactStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case ContactNew, ContactRead, ContactResponded:
		return value, nil
	}
	return "", fmt.Errorf("unknown contact status %q", raw)
}

func (c *ContactStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseContactStatus(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ContactStatus) Value() (driver.Value, error) {
	return string(c), nil
}

type ReviewStatus string

const (
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewSubmitted  ReviewStatus = "submitted"
)

func (r *ReviewStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	switch ReviewStatus(raw) {
	case ReviewInProgress, ReviewSubmitted:
		*r = ReviewStatus(raw)
		return nil
	}
	return fmt.Errorf("unknown review status %q", raw)
}

func (r ReviewStatus) Value() (driver.Value, error) {
	return string(r), nil
}

func scanString(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL status")
	}
	return "", fmt.Errorf("unsupported status type %T", src)
}
