// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver, development and tests) and Postgres (Supabase in
// production), plus schema migrations.
package repo

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers postgres:// for migrate
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open dispatches on driver ("sqlite" or "postgres").
func Open(driver, sqlitePath, postgresURL string) (*gorm.DB, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(sqlitePath)
	case "postgres":
		return OpenPostgres(postgresURL)
	default:
		return nil, fmt.Errorf("repo: unknown driver %q", driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, instrument(db)
}

// OpenPostgres connects to a Postgres DSN such as the Supabase connection
// string. Prepared statements are disabled so the transaction pooler works.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, instrument(db)
}

// instrument attaches the OpenTelemetry GORM plugin so every query becomes a
// child span of the request that issued it.
func instrument(db *gorm.DB) error {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return fmt.Errorf("repo: otel plugin: %w", err)
	}
	return nil
}

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&domain.TelegramConfig{},
		&domain.AllowedUser{},
		&domain.ProcessedUpdate{},
		&domain.ConversationSession{},
		&domain.HealthInsuranceRequest{},
		&domain.ServiceRequest{},
		&domain.VoluntaryReturnForm{},
		&domain.ChatSession{},
		&domain.ChatMessage{},
		&domain.AccountingAuth{},
		&domain.AccountingCategory{},
		&domain.AccountingTransaction{},
		&domain.Profile{},
		&domain.Moderator{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema from the GORM models. It is used
// for SQLite; Postgres goes through the versioned SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// MigrationSource returns the embedded SQL migrations as a migrate source.
func MigrationSource() (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations")
}

// MigrateUp applies all pending embedded migrations to the Postgres database
// at dsn and returns the resulting schema version.
func MigrateUp(dsn string) (uint, error) {
	src, err := MigrationSource()
	if err != nil {
		return 0, fmt.Errorf("migrate: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return 0, fmt.Errorf("migrate: init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate: up: %w", err)
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migrate: version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("migrate: schema version %d is dirty", v)
	}
	return v, nil
}
