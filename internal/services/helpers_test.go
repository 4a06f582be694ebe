package services

import (
	"database/sql/driver"
	"time"

	"scriptportal-backend-go/internal/rubric"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var scriptCols = []string{
	"id", "title", "author_name", "author_email", "author_phone", "file_url", "file_name", "file_key",
	"file_checksum", "amount", "original_amount", "discount_code", "tier_id", "tier_name", "granularity",
	"payment_status", "status", "assigned_judge_id", "created_at", "reviewed_at",
}

func scriptRow(id, status string, judgeID driver.Value, granularity rubric.Granularity) []driver.Value {
	return []driver.Value{
		id, "Pilot Season", "Ann Writer", "ann@example.com", nil, "http://files/storage/scripts/1_pilot.pdf",
		"pilot.pdf", "1_pilot.pdf", nil, int64(50000), int64(50000), nil, "standard", "Standard Coverage",
		string(granularity), "paid", status, judgeID, testEpoch, nil,
	}
}

var contractorCols = []string{
	"id", "name", "email", "password_hash", "status", "specialization", "current_workload",
	"total_scripts_reviewed", "availability", "created_at",
}

func contractorRow(id, status, hash string) []driver.Value {
	return []driver.Value{id, "Jo Reader", "jo@example.com", hash, status, nil, int64(0), int64(0), nil, testEpoch}
}

func reviewCols() []string {
	cols := []string{"id", "script_id", "judge_id", "status", "recommendation", "feedback", "overall_notes",
		"created_at", "updated_at", "submitted_at"}
	return append(cols, rubric.Columns()...)
}

// reviewRow builds a script_reviews row; rubric values are keyed by column name.
func reviewRow(id, scriptID, judgeID, status string, values map[string]driver.Value) []driver.Value {
	row := []driver.Value{id, scriptID, judgeID, status, nil, nil, nil, testEpoch, testEpoch, nil}
	for _, col := range rubric.Columns() {
		row = append(row, values[col])
	}
	return row
}

func pageRubricCols() []string {
	return append([]string{"id", "script_review_id", "page_number", "updated_at"}, rubric.Columns()...)
}

func intPtr(v int) *int {
	return &v
}
