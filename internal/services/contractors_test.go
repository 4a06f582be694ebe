package services

import (
	"context"
	"database/sql/driver"
	"testing"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/testutil"
)

func TestSignupCreatesPendingContractor(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Query(`SELECT EXISTS\(SELECT 1 FROM judges`, []string{"exists"}, []driver.Value{false}).WithArgs("jo@example.com"),
		testutil.Exec(`INSERT INTO judges`, 1),
		testutil.Exec(`SELECT log_activity`, 1),
	)
	contractor, err := SignupContractor(context.Background(), db, testTokens(), ContractorSignup{
		Name:     "Jo Reader",
		Email:    " Jo@Example.com ",
		Password: "long-enough",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	script.Verify(t)
	if contractor.Status != models.ContractorPending || contractor.Email != "jo@example.com" {
		t.Fatalf("unexpected contractor %#v", contractor)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	db, _ := testutil.NewDB(t,
		testutil.Query(`SELECT EXISTS`, []string{"exists"}, []driver.Value{true}),
	)
	_, err := SignupContractor(context.Background(), db, testTokens(), ContractorSignup{Name: "Jo", Email: "jo@example.com", Password: "long-enough"})
	if serr, ok := AsServiceError(err); !ok || serr.Status != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestAuthenticateContractorRequiresApproval(t *testing.T) {
	tokens := testTokens()
	hash, err := tokens.HashPassword("long-enough")
	if err != nil {
		t.Fatal(err)
	}
	db, _ := testutil.NewDB(t,
		testutil.Query(`FROM judges\s+WHERE lower\(email\) = \$1`, contractorCols, contractorRow("j1", "pending", hash)),
		testutil.Query(`FROM judges\s+WHERE lower\(email\) = \$1`, contractorCols, contractorRow("j1", "approved", hash)),
		testutil.Query(`FROM judges\s+WHERE lower\(email\) = \$1`, contractorCols, contractorRow("j1", "approved", hash)),
	)
	ctx := context.Background()
	if _, err := AuthenticateContractor(ctx, db, tokens, "jo@example.com", "long-enough"); err == nil {
		t.Fatalf("pending contractor must not sign in")
	} else if serr, _ := AsServiceError(err); serr.Status != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
	if _, err := AuthenticateContractor(ctx, db, tokens, "jo@example.com", "nope"); err == nil {
		t.Fatalf("wrong password must fail")
	}
	contractor, err := AuthenticateContractor(ctx, db, tokens, "JO@example.com", "long-enough")
	if err != nil || contractor.ID != "j1" {
		t.Fatalf("expected approved login, got %v", err)
	}
}

func TestDeleteContractorWithAssignedScripts(t *testing.T) {
	db, _ := testutil.NewDB(t,
		testutil.Query(`SELECT COUNT\(\*\) FROM scripts`, []string{"count"}, []driver.Value{int64(2)}),
	)
	err := DeleteContractor(context.Background(), db, SystemActor, "j1")
	if serr, ok := AsServiceError(err); !ok || serr.Status != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestSetContractorStatusApproves(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Exec(`UPDATE judges SET status = \$1`, 1).WithArgs("approved", "j1"),
		testutil.Exec(`SELECT log_activity`, 1),
		testutil.Query(`FROM judges\s+WHERE id = \$1`, contractorCols, contractorRow("j1", "approved", "x")),
	)
	contractor, err := SetContractorStatus(context.Background(), db, SystemActor, "j1", "Approved")
	if err != nil || contractor.Status != models.ContractorApproved {
		t.Fatalf("unexpected %v %v", contractor, err)
	}
	script.Verify(t)
}

func TestEnsureAdminSkipsExisting(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Query(`FROM admins WHERE lower\(email\)`, []string{"exists"}, []driver.Value{true}),
	)
	if err := EnsureAdmin(context.Background(), db, testTokens(), "admin@example.com", "secret-pass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	script.Verify(t)
}

func TestAuthenticateAdmin(t *testing.T) {
	tokens := testTokens()
	hash, _ := tokens.HashPassword("secret-pass")
	cols := []string{"id", "email", "name", "password_hash", "created_at", "last_login_at"}
	db, script := testutil.NewDB(t,
		testutil.Query(`FROM admins`, cols, []driver.Value{"a1", "admin@example.com", "Administrator", hash, testEpoch, nil}),
		testutil.Exec(`UPDATE admins SET last_login_at`, 1),
	)
	admin, err := AuthenticateAdmin(context.Background(), db, tokens, "Admin@Example.com", "secret-pass")
	if err != nil || admin.ID != "a1" || admin.LastLoginAt == nil {
		t.Fatalf("unexpected %v %v", admin, err)
	}
	script.Verify(t)
}
