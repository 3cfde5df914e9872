package db

import (
	"context"
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/sym"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// migration is one embedded schema file, named <version>_<description>.sql
type migration struct {
	version  string
	filename string
}

// embeddedMigrations lists the migration files in version order.
// 000_create_schema_migrations.sql sorts first and creates the ledger table.
func embeddedMigrations() ([]migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var list []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, errors.Newf("migration %s has no version prefix", name)
		}
		list = append(list, migration{version: version, filename: name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].filename < list[j].filename })
	return list, nil
}

// Migrate runs all pending migrations.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	_, err := ApplyMigrations(context.Background(), db, logger)
	return err
}

// ApplyMigrations runs pending migrations, each in its own transaction, and
// returns how many were applied.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger) (int, error) {
	list, err := embeddedMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range list {
		done, err := isApplied(ctx, db, m)
		if err != nil {
			return applied, err
		}
		if done {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)",
					"migration", m.filename,
					"version", m.version,
				)
			}
			continue
		}

		if logger != nil {
			logger.Infow("Applying migration",
				"migration", m.filename,
				"version", m.version,
			)
		}
		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"symbol", sym.DB,
			"total_migrations", len(list),
			"applied", applied,
		)
	}
	return applied, nil
}

// isApplied checks the ledger. Before 000 has run the ledger does not exist,
// which is only acceptable for 000 itself.
func isApplied(ctx context.Context, db *sql.DB, m migration) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version,
	).Scan(&exists)
	if err != nil {
		if m.version != "000" {
			return false, errors.Newf("schema_migrations table missing, but migration is not 000: %s", m.filename)
		}
		return false, nil
	}
	return exists, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.filename))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.filename)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.filename)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.filename)
	}
	// 000 creates the ledger, then records itself like every other migration
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return errors.Wrapf(err, "record %s", m.filename)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit %s", m.filename)
	}
	return nil
}
