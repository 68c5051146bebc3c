package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const migrationLockID = 7462839

// Migration is one NNN_description.sql file.
type Migration struct {
	Version  string
	Filename string
	Checksum string
	SQL      string
}

// Migrate applies every pending migration in dir, each in its own transaction.
// An applied migration whose file changed since is an error. Only one migrator
// runs at a time, guarded by a Postgres advisory lock.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dir string, log logrus.FieldLogger) (applied int, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&locked); err != nil {
		return 0, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		return 0, errors.New("another migrator is currently running")
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations, err := DiscoverMigrations(dir)
	if err != nil {
		return 0, err
	}
	for _, m := range migrations {
		ok, err := applyMigration(ctx, pool, m)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
			log.WithField("migration", m.Filename).Info("migration applied")
		} else {
			log.WithField("migration", m.Filename).Debug("migration already applied")
		}
	}
	return applied, nil
}

// DiscoverMigrations reads dir and returns its migrations ordered by filename.
func DiscoverMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %s: expected NNN_description.sql", entry.Name())
		}
		if seen[version] {
			return nil, fmt.Errorf("duplicate migration version %s", version)
		}
		seen[version] = true

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(raw)
		migrations = append(migrations, Migration{
			Version:  version,
			Filename: entry.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(raw),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Filename < migrations[j].Filename })
	return migrations, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	var existing string
	err := pool.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", m.Version).Scan(&existing)
	switch {
	case err == nil:
		if existing != m.Checksum {
			return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", m.Filename, existing, m.Checksum)
		}
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("failed to query schema_migrations for %s: %w", m.Filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for %s: %w", m.Filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("failed to execute migration %s: %w", m.Filename, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		m.Version, m.Filename, m.Checksum); err != nil {
		return false, fmt.Errorf("failed to insert migration record for %s: %w", m.Filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", m.Filename, err)
	}
	return true, nil
}
