package repomanager

import (
	"context"
	"database/sql"

	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/server/repositories/activesessions"
	"github.com/kpawlak/taskgrid/internal/server/repositories/broadcasts"
	"github.com/kpawlak/taskgrid/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ActiveSessions(db dbx.DBTX) activesessions.Repository
	Broadcasts(db dbx.DBTX) broadcasts.Repository
}
