package services

import (
	"context"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"scriptportal-backend-go/internal/models"
)

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

type Dashboard struct {
	Scripts        []StatusCount          `json:"scripts"`
	Payments       []StatusCount          `json:"payments"`
	Contractors    []StatusCount          `json:"contractors"`
	PaidRevenue    int64                  `json:"paidRevenue"`
	NewContacts    int                    `json:"newContacts"`
	Unassigned     int                    `json:"unassigned"`
	RecentActivity []models.ActivityEntry `json:"recentActivity"`
}

// LoadDashboard runs the admin overview queries in parallel.
func LoadDashboard(ctx context.Context, db *sqlx.DB) (Dashboard, error) {
	var out Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Scripts = []StatusCount{}
		return db.SelectContext(ctx, &out.Scripts, `SELECT status, COUNT(*) AS count FROM scripts GROUP BY status ORDER BY status`)
	})
	g.Go(func() error {
		out.Payments = []StatusCount{}
		return db.SelectContext(ctx, &out.Payments, `SELECT payment_status AS status, COUNT(*) AS count FROM scripts GROUP BY payment_status ORDER BY payment_status`)
	})
	g.Go(func() error {
		out.Contractors = []StatusCount{}
		return db.SelectContext(ctx, &out.Contractors, `SELECT status, COUNT(*) AS count FROM judges GROUP BY status ORDER BY status`)
	})
	g.Go(func() error {
		return db.GetContext(ctx, &out.PaidRevenue, `SELECT COALESCE(SUM(amount), 0) FROM scripts WHERE payment_status = 'paid'`)
	})
	g.Go(func() error {
		return db.GetContext(ctx, &out.NewContacts, `SELECT COUNT(*) FROM contacts WHERE status = 'new'`)
	})
	g.Go(func() error {
		return db.GetContext(ctx, &out.Unassigned, `SELECT COUNT(*) FROM scripts WHERE status = 'pending' AND payment_status = 'paid'`)
	})
	g.Go(func() error {
		items, err := ListActivity(ctx, db, 10)
		out.RecentActivity = items
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}
