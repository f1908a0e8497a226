// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/server/migrations"
	"github.com/kpawlak/taskgrid/internal/server/repositories/activesessions"
	"github.com/kpawlak/taskgrid/internal/server/repositories/broadcasts"
	"github.com/kpawlak/taskgrid/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// ActiveSessions returns an activesessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) ActiveSessions(db dbx.DBTX) activesessions.Repository {
	return activesessions.NewPostgresRepository(db)
}

// Broadcasts returns a broadcasts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Broadcasts(db dbx.DBTX) broadcasts.Repository {
	return broadcasts.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
