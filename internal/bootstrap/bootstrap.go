// Package bootstrap stands up a local-development ticketing store by
// applying the embedded schema migrations. It exists for developers working
// without access to a real extraction pipeline; production stores are never
// touched by this path.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	oerrors "github.com/opsintel-labs/opsintel/internal/errors"
	"github.com/opsintel-labs/opsintel/migrations"
)

// Runner applies pending schema migrations to a PostgreSQL database.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a migration runner over an open database handle.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Run executes all pending migrations in version order.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return oerrors.NewBootstrapFailed("cannot create migrations table", err)
	}

	applied, err := r.appliedMigrations(ctx)
	if err != nil {
		return oerrors.NewBootstrapFailed("cannot read applied migrations", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return oerrors.NewBootstrapFailed("cannot read embedded migrations", err)
	}

	for _, m := range files {
		if applied[m.version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return oerrors.NewBootstrapFailed(fmt.Sprintf("migration %s failed", m.name), err)
		}
	}
	return nil
}

type migration struct {
	version string
	name    string
	content []byte
}

func (r *Runner) ensureMigrationsTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *Runner) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migrationFiles() ([]migration, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, err
	}

	var list []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return nil, fmt.Errorf("cannot read migration %s: %w", name, err)
		}
		list = append(list, migration{
			version: parts[0],
			name:    strings.TrimSuffix(name, ".up.sql"),
			content: content,
		})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	return list, nil
}

func (r *Runner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(m.content)); err != nil {
		return fmt.Errorf("cannot execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
		m.version, time.Now(),
	); err != nil {
		return fmt.Errorf("cannot record migration: %w", err)
	}
	return tx.Commit()
}
