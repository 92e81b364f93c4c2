// Package migrations holds the Postgres schema and applies it with
// golang-migrate.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/lock"
)

//go:embed sql/*.sql
var files embed.FS

// Source returns the embedded migration files as a migrate source driver.
func Source() (source.Driver, error) {
	d, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return d, nil
}

// DriverURL rewrites a postgres:// connection string to the pgx5 scheme the
// migrate driver registers under.
func DriverURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Runner applies the embedded schema.
type Runner struct {
	DatabaseURL string
	// Locker serialises runs across replicas when set.
	Locker *lock.Locker
	Logger zerolog.Logger
}

// Up migrates to the latest version. An up-to-date schema is not an error.
func (r Runner) Up(ctx context.Context) error {
	if strings.TrimSpace(r.DatabaseURL) == "" {
		return errors.New("migrations: database url is required")
	}
	if r.Locker != nil && r.Locker.R != nil {
		return r.Locker.WithLock(ctx, lock.MigrationKey, 5*time.Minute, r.up)
	}
	return r.up(ctx)
}

func (r Runner) up(context.Context) error {
	src, err := Source()
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(r.DatabaseURL))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			r.Logger.Warn().AnErr("source", srcErr).AnErr("db", dbErr).Msg("close migrate")
		}
	}()
	m.Log = migrateLogger{r.Logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	r.Logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
	return nil
}

type migrateLogger struct{ l zerolog.Logger }

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m migrateLogger) Verbose() bool { return false }
