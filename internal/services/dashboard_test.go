package services

import (
	"context"
	"database/sql/driver"
	"testing"

	"scriptportal-backend-go/internal/testutil"
)

func TestLoadDashboardAggregates(t *testing.T) {
	countCols := []string{"status", "count"}
	db, script := testutil.NewDB(t,
		testutil.Query(`FROM scripts GROUP BY status`, countCols,
			[]driver.Value{"assigned", int64(2)}, []driver.Value{"pending", int64(3)}),
		testutil.Query(`GROUP BY payment_status`, countCols, []driver.Value{"paid", int64(5)}),
		testutil.Query(`FROM judges GROUP BY status`, countCols, []driver.Value{"approved", int64(4)}),
		testutil.Query(`SUM\(amount\)`, []string{"sum"}, []driver.Value{int64(181250)}),
		testutil.Query(`FROM contacts WHERE status = 'new'`, []string{"count"}, []driver.Value{int64(1)}),
		testutil.Query(`status = 'pending' AND payment_status = 'paid'`, []string{"count"}, []driver.Value{int64(3)}),
		testutil.Query(`FROM activity_log`, []string{"id", "actor_type", "actor_id", "action", "entity_type", "entity_id", "details", "created_at"},
			[]driver.Value{"e1", "admin", "a1", "script_assigned", "script", "s1", `{"judgeId":"j1"}`, testEpoch}),
	)
	script.AnyOrder()
	dash, err := LoadDashboard(context.Background(), db)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	script.Verify(t)
	if dash.PaidRevenue != 181250 || dash.NewContacts != 1 || dash.Unassigned != 3 {
		t.Fatalf("unexpected totals %#v", dash)
	}
	if len(dash.Scripts) != 2 || len(dash.RecentActivity) != 1 {
		t.Fatalf("unexpected breakdowns %#v", dash)
	}
}
