// Package migrations applies the versioned SQL files under migrations/ in
// order, recording each in schema_migrations.
package migrations

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	Name    string
	Version string
	Path    string
}

func Apply(ctx context.Context, db *sqlx.DB, dir string) error {
	if err := ensureTable(ctx, db); err != nil {
		return err
	}
	migs, err := listMigrations(dir)
	if err != nil {
		return err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	for _, mig := range migs {
		if applied.names[mig.Name] || (mig.Version != "" && applied.versions[mig.Version]) {
			continue
		}
		if err := applyMigration(ctx, db, mig); err != nil {
			return err
		}
		log.Printf("migrations: applied %s", mig.Name)
	}
	return nil
}

func ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id SERIAL PRIMARY KEY,
  version TEXT NULL,
  name TEXT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS uq_schema_migrations_name ON schema_migrations(name) WHERE name IS NOT NULL`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS uq_schema_migrations_version ON schema_migrations(version) WHERE version IS NOT NULL`)
	return err
}

// listMigrations orders V<n>__ files numerically, then any others by name.
func listMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	migs := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		migs = append(migs, migration{
			Name:    name,
			Version: parseVersion(name),
			Path:    filepath.Join(dir, name),
		})
	}
	sort.Slice(migs, func(i, j int) bool {
		iVersion, iOk := parseVersionNumber(migs[i].Name)
		jVersion, jOk := parseVersionNumber(migs[j].Name)
		switch {
		case iOk && jOk && iVersion != jVersion:
			return iVersion < jVersion
		case iOk != jOk:
			return iOk
		default:
			return migs[i].Name < migs[j].Name
		}
	})
	return migs, nil
}

type appliedSet struct {
	names    map[string]bool
	versions map[string]bool
}

func appliedMigrations(ctx context.Context, db *sqlx.DB) (appliedSet, error) {
	rows := []struct {
		Version *string `db:"version"`
		Name    *string `db:"name"`
	}{}
	if err := db.SelectContext(ctx, &rows, `SELECT version, name FROM schema_migrations`); err != nil {
		return appliedSet{}, err
	}
	set := appliedSet{names: map[string]bool{}, versions: map[string]bool{}}
	for _, row := range rows {
		if row.Name != nil {
			set.names[*row.Name] = true
		}
		if row.Version != nil {
			set.versions[*row.Version] = true
		}
	}
	return set, nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, mig migration) error {
	content, err := os.ReadFile(mig.Path)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, nullIfEmpty(mig.Version), mig.Name)
	return err
}

func parseVersion(name string) string {
	if !strings.HasPrefix(name, "V") {
		return ""
	}
	parts := strings.SplitN(name[1:], "__", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

func parseVersionNumber(name string) (int, bool) {
	raw := parseVersion(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
