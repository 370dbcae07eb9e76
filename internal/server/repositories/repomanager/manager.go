package repomanager

import (
	"context"
	"database/sql"

	"github.com/cliptide/cliptide/internal/dbx"
	"github.com/cliptide/cliptide/internal/server/repositories/sessions"
	"github.com/cliptide/cliptide/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
