package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the directory inside the embedded filesystem goose reads from.
const MigrationsDir = "migrations"

func prepareGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// RunMigrations executes all pending database migrations
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	if err := prepareGoose(); err != nil {
		return err
	}

	logger.Info("Checking for pending migrations...", zap.String("dir", MigrationsDir))

	if err := goose.Up(db, MigrationsDir); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("Migrations completed successfully", zap.Int64("version", version))
	return nil
}

// MigrationState compares the applied schema version with the newest embedded migration.
type MigrationState struct {
	Current int64 `json:"current"`
	Latest  int64 `json:"latest"`
}

func (m MigrationState) Pending() bool {
	return m.Current < m.Latest
}

// MigrationStatus reads the applied version without changing anything.
func MigrationStatus(ctx context.Context, db *sql.DB) (MigrationState, error) {
	if db == nil {
		return MigrationState{}, errors.New("database not configured")
	}
	fsys, err := fs.Sub(migrationsFS, MigrationsDir)
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to create migration provider: %w", err)
	}
	current, latest, err := provider.GetVersions(ctx)
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to read migration versions: %w", err)
	}
	return MigrationState{Current: current, Latest: latest}, nil
}
