package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// url builds the postgres:// connection string golang-migrate expects,
// distinct from dsn()'s libpq key=value form that gorm's driver takes.
func (c *PostgresConfig) url() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// migratePostgres runs the embedded schema migrations against a Postgres
// database. SQLite keeps GORM's AutoMigrate instead: golang-migrate's
// sqlite driver needs mattn/go-sqlite3 (cgo), while this store dials
// SQLite through the pure-Go glebarez/sqlite dialector.
func migratePostgres(cfg PostgresConfig) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlstore: load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.url())
	if err != nil {
		return fmt.Errorf("sqlstore: init migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: apply migrations: %w", err)
	}
	return nil
}
