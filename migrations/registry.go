package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	ledgerbridge "github.com/goliatone/go-ledgerbridge"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Source is the migration set of one dialect. Postgres files sit at the
// root of data/sql/migrations and SQLite files under sqlite/.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Target receives the dialect's migration set and then applies it.
type Target struct {
	Register func(fsys fs.FS)
	Migrate  func(ctx context.Context) error
}

// DialectForDriver maps a database/sql driver name onto its dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
}

// Sources lists the embedded migration sets, or those of root when given.
// Every set must hold at least one *.up.sql file.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = ledgerbridge.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: open sqlite set: %w", err)
	}
	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

func ForDialect(dialect string) (Source, error) {
	sources, err := Sources(nil)
	if err != nil {
		return Source{}, err
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Apply registers the ledger_tokens schema for dialect and migrates.
func Apply(ctx context.Context, target Target, dialect string) error {
	if target.Register == nil || target.Migrate == nil {
		return fmt.Errorf("migrations: register and migrate are required")
	}
	source, err := ForDialect(dialect)
	if err != nil {
		return err
	}
	target.Register(source.FS)
	if err := target.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: apply %s: %w", source.Path, err)
	}
	return nil
}
