package postgres

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // registers the file:// source
)

// NewMigrator opens a golang-migrate instance reading SQL files from dir.
//
// Precondition: dir must exist and contain NNNNNN_name.{up,down}.sql pairs.
// Postcondition: the caller must Close the returned migrator.
func NewMigrator(dsn, dir string) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving migrations dir %q: %w", dir, err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration in dir. An already current schema is not an error.
func MigrateUp(dsn, dir string) (err error) {
	m, err := NewMigrator(dsn, dir)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
