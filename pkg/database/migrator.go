package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/OldStager01/press-downtime/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema. Production deployments share the
// schema with the backend; this is used for local and test databases.
type Migrator struct {
	db *DB
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

type migrateLog struct{}

func (migrateLog) Printf(format string, v ...interface{}) {
	logger.Debugf("migrate: "+strings.TrimRight(format, "\n"), v...)
}

func (migrateLog) Verbose() bool { return false }

// with opens a migrate instance over the embedded files, runs fn and closes
// the source. The shared pool is left open.
func (m *Migrator) with(fn func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(m.db.SQL(), &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	mg.Log = migrateLog{}
	defer source.Close()

	return fn(mg)
}

// Up applies pending migrations and returns the resulting version.
func (m *Migrator) Up() (uint, error) {
	var version uint
	err := m.with(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		v, _, err := mg.Version()
		version = v
		return err
	})
	return version, err
}

func (m *Migrator) Down() error {
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}

// Version reports the applied schema version. A database that was never
// migrated reports version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.with(func(mg *migrate.Migrate) error {
		version, dirty, err = mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty, err = 0, false, nil
		}
		return err
	})
	return version, dirty, err
}
