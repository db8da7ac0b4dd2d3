package repository

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// columnMigrations lists, in schema order, the nullable users columns and the
// migration version that introduced each one. It must stay in step with the
// ALTER TABLE files under migrations/.
var columnMigrations = []struct {
	version uint
	column  string
}{
	{1, "first_name"},
	{1, "last_name"},
	{1, "email"},
	{2, "job_title"},
	{3, "favorite_service"},
	{4, "region"},
	{5, "bio"},
	{6, "last_login"},
}

// NewSQLiteDB opens (creating if needed) the SQLite database file at path.
func NewSQLiteDB(path string, logger *zap.Logger) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("Successfully connected to the database!", zap.String("db_path", path))
	return db, nil
}

// MigrateDB brings the users table up to the latest schema version. It only
// ever adds tables, columns and indexes, and it is safe to run on every start.
func MigrateDB(db *sqlx.DB, logger *zap.Logger) error {
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}

	// m.Close is never called: it would close the shared pool.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := adoptLegacySchema(db, m, logger); err != nil {
		return fmt.Errorf("couldn't adopt legacy users table: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("couldn't read schema version: %w", err)
	}

	logger.Info("Database migration was run successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// adoptLegacySchema handles a users table created by a build that did not
// track schema versions. Missing optional columns are added in order and the
// database is baselined at the last column migration, so Up only applies
// what follows.
func adoptLegacySchema(db *sqlx.DB, m *migrate.Migrate, logger *zap.Logger) error {
	_, _, err := m.Version()
	if err == nil {
		return nil
	}
	if !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	var tables int
	if err := db.Get(&tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'`); err != nil {
		return err
	}
	if tables == 0 {
		return nil
	}

	existing, err := tableColumns(db, "users")
	if err != nil {
		return err
	}

	var baseline uint
	for _, cm := range columnMigrations {
		if !existing[cm.column] {
			if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE users ADD COLUMN %s TEXT`, cm.column)); err != nil {
				return fmt.Errorf("failed to add column %s: %w", cm.column, err)
			}
			logger.Info("Added missing column to legacy users table", zap.String("column", cm.column))
		}
		baseline = cm.version
	}

	logger.Info("Baselining legacy users table", zap.Uint("version", baseline))
	return m.Force(int(baseline))
}

func tableColumns(db *sqlx.DB, table string) (map[string]bool, error) {
	var names []string
	if err := db.Select(&names, `SELECT name FROM pragma_table_info(?)`, table); err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}

	columns := make(map[string]bool, len(names))
	for _, name := range names {
		columns[name] = true
	}
	return columns, nil
}
