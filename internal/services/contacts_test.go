package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scriptportal-backend-go/internal/contactcache"
	"scriptportal-backend-go/internal/testutil"
)

func openCache(t *testing.T) *contactcache.Cache {
	t.Helper()
	cache, err := contactcache.Open(filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSubmitContactKeepsEntryWhenDatabaseFails(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Exec(`INSERT INTO contacts`, 0).WillFail(errors.New("connection refused")),
		testutil.Exec(`INSERT INTO contacts`, 1),
	)
	cache := openCache(t)
	contacts := &Contacts{DB: db, Cache: cache, Retention: 24 * time.Hour}
	ctx := context.Background()

	contact, synced, err := contacts.Submit(ctx, ContactInput{Name: "Ada", Email: "ada@example.com", Message: "Hi there"}, testEpoch)
	if err != nil {
		t.Fatalf("submit should succeed from the cache, got %v", err)
	}
	if synced {
		t.Fatalf("entry should be reported as not yet synced")
	}
	pending, _ := cache.Pending(ctx, 10)
	if len(pending) != 1 || pending[0].ID != contact.ID {
		t.Fatalf("expected cached entry, got %#v", pending)
	}

	result, err := contacts.Sync(ctx, testEpoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	script.Verify(t)
	if result.Pushed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected sync result %#v", result)
	}
	pending, _ = cache.Pending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("nothing should remain pending")
	}
}

func TestSubmitContactWithoutCacheReportsUnavailable(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Exec(`INSERT INTO contacts`, 0).WillFail(errors.New("connection refused")),
	)
	contacts := &Contacts{DB: db}
	_, _, err := contacts.Submit(context.Background(), ContactInput{Name: "Ada", Email: "ada@example.com", Message: "Hi"}, testEpoch)
	serr, ok := AsServiceError(err)
	if !ok || serr.Status != 503 {
		t.Fatalf("expected 503, got %v", err)
	}
	script.Verify(t)
}

func TestSubmitContactValidates(t *testing.T) {
	db, _ := testutil.NewDB(t)
	contacts := &Contacts{DB: db}
	_, _, err := contacts.Submit(context.Background(), ContactInput{Name: "Ada", Email: "nope", Message: "Hi"}, testEpoch)
	if serr, ok := AsServiceError(err); !ok || serr.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSubmitContactSynced(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Exec(`INSERT INTO contacts`, 1),
		testutil.Exec(`SELECT log_activity`, 1),
	)
	contacts := &Contacts{DB: db, Cache: openCache(t)}
	_, synced, err := contacts.Submit(context.Background(), ContactInput{Name: "Ada", Email: "ada@example.com", Message: "Hi"}, testEpoch)
	if err != nil || !synced {
		t.Fatalf("expected synced contact, got %v %v", synced, err)
	}
	script.Verify(t)
}

func TestSetContactStatusRejectsUnknown(t *testing.T) {
	db, _ := testutil.NewDB(t)
	err := SetContactStatus(context.Background(), db, SystemActor, "c1", "archived")
	if serr, ok := AsServiceError(err); !ok || serr.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}
