package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	name string
	sql  string
}

// RunMigrations applies the embedded schema files that have not run yet,
// in file name order. Each file runs in its own transaction together with
// its bookkeeping row.
func RunMigrations(db *DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	pending, total, err := pendingMigrations(db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Printf("Schema up to date (%d migrations)", total)
		return nil
	}

	for _, m := range pending {
		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.sql); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			if _, err := tx.Exec("INSERT INTO _migrations (name) VALUES (?)", m.name); err != nil {
				return fmt.Errorf("recording migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		log.Printf("Applied migration %s to %s", m.name, db.Path())
	}
	return nil
}

// pendingMigrations lists the embedded files not yet recorded, sorted, and
// the number of embedded files overall.
func pendingMigrations(db *DB) ([]migration, int, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, 0, fmt.Errorf("listing migration files: %w", err)
	}
	sort.Strings(names)

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT name FROM _migrations")
	if err != nil {
		return nil, 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, 0, fmt.Errorf("scanning applied migration: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var pending []migration
	for _, file := range names {
		name := path.Base(file)
		if applied[name] {
			continue
		}
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", file, err)
		}
		pending = append(pending, migration{name: name, sql: string(content)})
	}
	return pending, len(names), nil
}
