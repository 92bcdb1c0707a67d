package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"freezefit/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	MigrationsTable = "schema_migrations"
	sourceDir       = "sql"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Runner applies the embedded schema migrations.
type Runner struct {
	m   *migrate.Migrate
	log *logger.Logger
}

func NewRunner(db *sql.DB, log *logger.Logger) (*Runner, error) {
	src, err := iofs.New(migrationFS, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = &migrateLogger{log: log}

	return &Runner{m: m, log: log}, nil
}

func (r *Runner) Up() error {
	err := r.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Info("Schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	r.log.Info("All migrations applied successfully")
	return nil
}

// Down rolls back the given number of migrations.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down failed: %w", err)
	}
	r.log.Info("Migrations rolled back", "steps", steps)
	return nil
}

func (r *Runner) Version() (uint, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Force marks version as applied without running it, clearing a dirty state.
func (r *Runner) Force(version int) error {
	return r.m.Force(version)
}

func (r *Runner) Close() {
	srcErr, dbErr := r.m.Close()
	if srcErr != nil || dbErr != nil {
		r.log.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
	}
}

// Files lists the embedded migration files in apply order.
func Files() ([]string, error) {
	entries, err := migrationFS.ReadDir(sourceDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type migrateLogger struct {
	log *logger.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
