package services

import (
	"context"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/contactcache"
	"scriptportal-backend-go/internal/models"
)

type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// Contacts writes contact-form entries to the main database and mirrors them
// in the local outbox.
type Contacts struct {
	DB        *sqlx.DB
	Cache     *contactcache.Cache
	Retention time.Duration
}

// Submit stores a contact. It reports whether the main database accepted it;
// when it did not, the entry stays pending in the cache and no error is
// returned.
func (c *Contacts) Submit(ctx context.Context, in ContactInput, now time.Time) (models.Contact, bool, error) {
	name, err := NormalizeRequired(in.Name, "Name is required")
	if err != nil {
		return models.Contact{}, false, err
	}
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Contact{}, false, ErrBadRequest("Email is invalid")
	}
	message, err := NormalizeRequired(in.Message, "Message is required")
	if err != nil {
		return models.Contact{}, false, err
	}
	contact := models.Contact{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Phone:     nullIfBlank(strings.TrimSpace(in.Phone)),
		Subject:   nullIfBlank(strings.TrimSpace(in.Subject)),
		Message:   message,
		Status:    models.ContactNew,
		CreatedAt: now.UTC(),
	}

	synced := true
	if err := InsertContact(ctx, c.DB, contact); err != nil {
		log.Printf("contacts: insert %s failed, keeping it in the local cache: %v", contact.ID, err)
		synced = false
	}
	if c.Cache != nil {
		if err := c.Cache.Record(ctx, contact, synced, now); err != nil {
			if !synced {
				return models.Contact{}, false, WrapError(err, "cache contact")
			}
			log.Printf("contacts: cache %s: %v", contact.ID, err)
		}
	} else if !synced {
		return models.Contact{}, false, ErrUnavailable("Could not save your message, please try again")
	}
	if synced {
		LogActivity(ctx, c.DB, Actor{Type: ActorPublic}, "contact_received", "contact", contact.ID, nil)
	}
	return contact, synced, nil
}

// InsertContact is idempotent on id so cached entries can be replayed.
func InsertContact(ctx context.Context, db *sqlx.DB, contact models.Contact) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO contacts (id, name, email, phone, subject, message, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`, contact.ID, contact.Name, contact.Email, contact.Phone, contact.Subject, contact.Message, contact.Status, contact.CreatedAt)
	return err
}

// Sync runs one reconcile pass of the local cache against the database.
func (c *Contacts) Sync(ctx context.Context, now time.Time) (contactcache.ReconcileResult, error) {
	if c.Cache == nil {
		return contactcache.ReconcileResult{}, nil
	}
	return c.Cache.Reconcile(ctx, func(ctx context.Context, contact models.Contact) error {
		return InsertContact(ctx, c.DB, contact)
	}, c.Retention, now)
}

func ListContacts(ctx context.Context, db *sqlx.DB, status string) ([]models.Contact, error) {
	items := []models.Contact{}
	query := `SELECT id, name, email, phone, subject, message, status, created_at FROM contacts`
	if status == "" {
		err := db.SelectContext(ctx, &items, query+` ORDER BY created_at DESC`)
		return items, err
	}
	parsed, err := models.ParseContactStatus(status)
	if err != nil {
		return nil, ErrBadRequest("Unknown status filter")
	}
	err = db.SelectContext(ctx, &items, query+` WHERE status = $1 ORDER BY created_at DESC`, parsed)
	return items, err
}

func SetContactStatus(ctx context.Context, db *sqlx.DB, actor Actor, id, raw string) error {
	status, err := models.ParseContactStatus(raw)
	if err != nil {
		return ErrBadRequest("Unknown status")
	}
	res, err := db.ExecContext(ctx, `UPDATE contacts SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Contact not found")
	}
	LogActivity(ctx, db, actor, "contact_"+string(status), "contact", id, nil)
	return nil
}

func DeleteContact(ctx context.Context, db *sqlx.DB, actor Actor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("Contact not found")
	}
	LogActivity(ctx, db, actor, "contact_deleted", "contact", id, nil)
	return nil
}
