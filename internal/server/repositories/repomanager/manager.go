package repomanager

import (
	"context"
	"database/sql"

	"github.com/aliceout/nodea/internal/dbx"
	"github.com/aliceout/nodea/internal/server/repositories/records"
	"github.com/aliceout/nodea/internal/server/repositories/refreshtokens"
	"github.com/aliceout/nodea/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
