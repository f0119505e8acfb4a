package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed schema/postgres/*.sql schema/sqlite/*.sql
var schemaFS embed.FS

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, string, error) {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres, "schema/postgres", nil
	case DialectSQLite:
		return goose.DialectSQLite3, "schema/sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %q", d)
	}
}

func newProvider(db *sql.DB, dialect Dialect) (*goose.Provider, error) {
	gd, dir, err := dialect.goose()
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(schemaFS, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(gd, db, fsys)
}

// Migrate applies pending schema migrations and returns the applied versions.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) ([]int64, error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations up: %w", err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB, dialect Dialect) (int64, error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return 0, fmt.Errorf("migrations: %w", err)
	}
	return p.GetDBVersion(ctx)
}
