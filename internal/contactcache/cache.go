// Package contactcache keeps a local SQLite outbox of contact-form entries.
// Every entry is recorded here first; entries that could not be written to
// the main database stay pending until a reconcile pass pushes them.
package contactcache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"scriptportal-backend-go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS contact_outbox (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT NULL,
  subject TEXT NULL,
  message TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  synced_at TIMESTAMP NULL,
  last_error TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_outbox_pending ON contact_outbox (synced, created_at);
`

type Cache struct {
	db *sqlx.DB
}

type Entry struct {
	ID        string     `db:"id"`
	Name      string     `db:"name"`
	Email     string     `db:"email"`
	Phone     *string    `db:"phone"`
	Subject   *string    `db:"subject"`
	Message   string     `db:"message"`
	CreatedAt time.Time  `db:"created_at"`
	Synced    bool       `db:"synced"`
	SyncedAt  *time.Time `db:"synced_at"`
	LastError *string    `db:"last_error"`
}

func (e Entry) Contact() models.Contact {
	return models.Contact{
		ID:        e.ID,
		Name:      e.Name,
		Email:     e.Email,
		Phone:     e.Phone,
		Subject:   e.Subject,
		Message:   e.Message,
		Status:    models.ContactNew,
		CreatedAt: e.CreatedAt,
	}
}

// Open creates the cache file and its parent directory if needed.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("contactcache: create dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("contactcache: open %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("contactcache: schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Record stores a contact in the outbox. synced says whether the main
// database already has it.
func (c *Cache) Record(ctx context.Context, contact models.Contact, synced bool, now time.Time) error {
	var syncedAt *time.Time
	if synced {
		t := now.UTC()
		syncedAt = &t
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO contact_outbox (id, name, email, phone, subject, message, created_at, synced, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET synced = excluded.synced, synced_at = excluded.synced_at
`, contact.ID, contact.Name, contact.Email, contact.Phone, contact.Subject, contact.Message,
		contact.CreatedAt.UTC(), synced, syncedAt)
	return err
}

func (c *Cache) MarkSynced(ctx context.Context, id string, now time.Time) error {
	_, err := c.db.ExecContext(ctx, `UPDATE contact_outbox SET synced = 1, synced_at = ?, last_error = NULL WHERE id = ?`, now.UTC(), id)
	return err
}

func (c *Cache) markFailed(ctx context.Context, id string, cause error) error {
	_, err := c.db.ExecContext(ctx, `UPDATE contact_outbox SET last_error = ? WHERE id = ?`, cause.Error(), id)
	return err
}

// Pending returns unsynced entries, oldest first.
func (c *Cache) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	items := []Entry{}
	err := c.db.SelectContext(ctx, &items, `
SELECT id, name, email, phone, subject, message, created_at, synced, synced_at, last_error
FROM contact_outbox
WHERE synced = 0
ORDER BY created_at
LIMIT ?
`, limit)
	return items, err
}

// Prune deletes synced entries older than retention and returns how many went.
// Pending entries are never pruned.
func (c *Cache) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM contact_outbox WHERE synced = 1 AND synced_at < ?`, now.Add(-retention).UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PushFunc writes one cached contact to the main store. It must be idempotent.
type PushFunc func(ctx context.Context, contact models.Contact) error

type ReconcileResult struct {
	Pushed int   `json:"pushed"`
	Failed int   `json:"failed"`
	Pruned int64 `json:"pruned"`
}

// Reconcile pushes pending entries, marks the successful ones synced and
// prunes old synced entries. A failing entry does not stop the pass.
func (c *Cache) Reconcile(ctx context.Context, push PushFunc, retention time.Duration, now time.Time) (ReconcileResult, error) {
	var result ReconcileResult
	pending, err := c.Pending(ctx, 0)
	if err != nil {
		return result, err
	}
	for _, entry := range pending {
		if err := push(ctx, entry.Contact()); err != nil {
			result.Failed++
			log.Printf("contactcache: push %s: %v", entry.ID, err)
			if merr := c.markFailed(ctx, entry.ID, err); merr != nil {
				log.Printf("contactcache: record failure %s: %v", entry.ID, merr)
			}
			continue
		}
		if err := c.MarkSynced(ctx, entry.ID, now); err != nil {
			return result, err
		}
		result.Pushed++
	}
	pruned, err := c.Prune(ctx, retention, now)
	if err != nil {
		return result, err
	}
	result.Pruned = pruned
	return result, nil
}
