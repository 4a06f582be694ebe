package migrations

import (
	"context"
	"database/sql/driver"
	"os"
	"path/filepath"
	"testing"

	"scriptportal-backend-go/internal/testutil"
)

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestListMigrationsOrdersByVersionNumber(t *testing.T) {
	dir := writeFiles(t, "V10__late.sql", "V2__procedures.sql", "notes.txt", "seed.sql", "V1__schema.sql")
	migs, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"V1__schema.sql", "V2__procedures.sql", "V10__late.sql", "seed.sql"}
	if len(migs) != len(want) {
		t.Fatalf("expected %d migrations, got %#v", len(want), migs)
	}
	for i, name := range want {
		if migs[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, migs[i].Name)
		}
	}
	if migs[2].Version != "10" || migs[3].Version != "" {
		t.Fatalf("unexpected versions %#v", migs)
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"V1__schema.sql": "1",
		"V3__x.sql":      "3",
		"V4.sql":         "",
		"schema.sql":     "",
	}
	for name, want := range cases {
		if got := parseVersion(name); got != want {
			t.Fatalf("parseVersion(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestApplySkipsRecordedMigrations(t *testing.T) {
	dir := writeFiles(t, "V1__schema.sql", "V2__procedures.sql")
	db, script := testutil.NewDB(t,
		testutil.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations`, 0),
		testutil.Exec(`uq_schema_migrations_name`, 0),
		testutil.Exec(`uq_schema_migrations_version`, 0),
		testutil.Query(`SELECT version, name FROM schema_migrations`, []string{"version", "name"},
			[]driver.Value{"1", "V1__schema.sql"}),
		testutil.Exec(`SELECT 1;`, 0),
		testutil.Exec(`INSERT INTO schema_migrations`, 1).WithArgs("2", "V2__procedures.sql"),
	)
	if err := Apply(context.Background(), db, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	script.Verify(t)
}
