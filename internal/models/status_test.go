package models

import "testing"

func TestParseScriptStatusCoercesLegacyVerdicts(t *testing.T) {
	for _, raw := range []string{"approved", "Declined", " APPROVED "} {
		got, err := ParseScriptStatus(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if got != ScriptCompleted {
			t.Fatalf("%q: expected completed, got %s", raw, got)
		}
	}
	if _, err := ParseScriptStatus("archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestScriptStatusScanRejectsUnknownValues(t *testing.T) {
	var status ScriptStatus
	if err := status.Scan([]byte("assigned")); err != nil || status != ScriptAssigned {
		t.Fatalf("expected assigned, got %q (%v)", status, err)
	}
	if err := status.Scan("declined"); err != nil || status != ScriptCompleted {
		t.Fatalf("expected legacy value to scan as completed, got %q (%v)", status, err)
	}
	if err := status.Scan("bogus"); err == nil {
		t.Fatalf("expected scan error")
	}
	if err := status.Scan(nil); err == nil {
		t.Fatalf("expected NULL scan error")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]ScriptStatus{
		{ScriptPending, ScriptAssigned},
		{ScriptAssigned, ScriptPending},
		{ScriptAssigned, ScriptReviewed},
		{ScriptReviewed, ScriptCompleted},
		{ScriptIncomplete, ScriptCompleted},
		{ScriptPending, ScriptIncomplete},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]ScriptStatus{
		{ScriptPending, ScriptReviewed},
		{ScriptCompleted, ScriptPending},
		{ScriptReviewed, ScriptAssigned},
		{ScriptCompleted, ScriptIncomplete},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestJSONScanAndMarshal(t *testing.T) {
	var value JSON
	if err := value.Scan(`{"a":1}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	out, err := value.MarshalJSON()
	if err != nil || string(out) != `{"a":1}` {
		t.Fatalf("unexpected marshal %s (%v)", out, err)
	}
	var empty JSON
	out, _ = empty.MarshalJSON()
	if string(out) != "null" {
		t.Fatalf("expected null, got %s", out)
	}
}
