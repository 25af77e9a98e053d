package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var slotSchema embed.FS

// MigrateSlots applies pending kv_slots migrations to the database at
// dbPath and returns the resulting schema version.
func MigrateSlots(dbPath string) (uint, error) {
	// The migrate driver closes the handle it is given, so it never sees
	// the slot's own pool.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer conn.Close()

	m, err := newSlotMigrator(conn)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	switch err := m.Up(); {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
	default:
		return 0, fmt.Errorf("apply slot migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("slot schema version %d is dirty", version)
	}
	return version, nil
}

func newSlotMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(slotSchema, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load slot migrations: %w", err)
	}
	target, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("prepare sqlite migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return nil, fmt.Errorf("build migrator: %w", err)
	}
	return m, nil
}
