// Package migrations applies the embedded schema to PostgreSQL and tracks
// applied versions in the schema_migrations table.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"
)

//go:embed sql/*.sql
var files embed.FS

// Migration represents a database migration
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	Applied   bool
	AppliedAt *time.Time
}

// Pattern: 001_name.up.sql / 001_name.down.sql
var filePattern = regexp.MustCompile(`^(\d{3})_(.+)\.(up|down)\.sql$`)

// Runner applies and rolls back migrations against a database
type Runner struct {
	db         *sql.DB
	migrations []Migration
}

// NewRunner creates a runner over the embedded migration files
func NewRunner(db *sql.DB) (*Runner, error) {
	migrations, err := Load(files)
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, migrations: migrations}, nil
}

// Load reads NNN_name.up.sql / NNN_name.down.sql pairs from fsys, sorted by version
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migration files: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, path := range entries {
		name := path[len("sql/"):]
		matches := filePattern.FindStringSubmatch(name)
		if len(matches) != 4 {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.UpSQL = string(content)
		} else {
			m.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up file", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// EnsureTable creates the schema_migrations tracking table
func (r *Runner) EnsureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Status returns every known migration with its applied state
func (r *Runner) Status(ctx context.Context) ([]Migration, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(r.migrations))
	copy(result, r.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			at := at
			result[i].Applied = true
			result[i].AppliedAt = &at
		}
	}
	return result, nil
}

// Up applies all pending migrations in version order and returns the ones applied
func (r *Runner) Up(ctx context.Context) ([]Migration, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range status {
		if m.Applied {
			continue
		}
		if err := r.exec(ctx, m.UpSQL, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			return done, fmt.Errorf("failed to apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
		done = append(done, m)
	}
	return done, nil
}

// Down rolls back the most recently applied migration. It returns nil when
// nothing is applied.
func (r *Runner) Down(ctx context.Context) (*Migration, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(status) - 1; i >= 0; i-- {
		m := status[i]
		if !m.Applied {
			continue
		}
		if m.DownSQL == "" {
			return nil, fmt.Errorf("no rollback defined for migration version %d", m.Version)
		}
		if err := r.exec(ctx, m.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return nil, fmt.Errorf("failed to rollback migration %03d_%s: %w", m.Version, m.Name, err)
		}
		return &m, nil
	}
	return nil, nil
}

// exec runs a migration body and its bookkeeping statement in one transaction
func (r *Runner) exec(ctx context.Context, body, track string, args ...interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx, track, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
