// Package database applies plain .up.sql file migrations at boot.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrator executes *.up.sql files in lexical order, recording each applied
// file in schema_migrations so a restart skips what already ran.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator logging through the given logger.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{db: db, log: log}
}

// ApplyDir scans dir for pending .up.sql files and executes them, each in
// its own transaction.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) error {
	if err := m.ensureTracking(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	log := m.log.With(slog.String("dir", dir))
	if len(files) == 0 {
		log.Warn("no .up.sql migrations found")
		return nil
	}

	applied := 0
	for _, name := range files {
		done, err := m.alreadyApplied(ctx, name)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		if err := m.applyFile(ctx, dir, name); err != nil {
			return err
		}
		applied++
	}

	log.Info("migrations up to date",
		slog.Int("total", len(files)),
		slog.Int("applied_now", applied),
	)
	return nil
}

func (m *Migrator) ensureTracking(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) alreadyApplied(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`

	var exists bool
	if err := m.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %q: %w", name, err)
	}
	return exists, nil
}

func (m *Migrator) applyFile(ctx context.Context, dir, name string) error {
	path := filepath.Join(dir, name)

	// #nosec G304: migration paths are controlled by deployment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", path, err)
	}

	statement := strings.TrimSpace(string(data))
	if statement == "" {
		m.log.Warn("migration is empty, skipping", slog.String("file", name))
		return nil
	}

	m.log.Info("applying migration", slog.String("file", name))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			m.log.Error("rollback failed", slog.String("file", name), slog.Any("error", rbErr))
		}
		return fmt.Errorf("execute migration %q: %w", name, err)
	}

	const record = `INSERT INTO schema_migrations (name) VALUES ($1)`
	if _, err := tx.ExecContext(ctx, record, name); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			m.log.Error("rollback failed", slog.String("file", name), slog.Any("error", rbErr))
		}
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}
