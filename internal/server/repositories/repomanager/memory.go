package repomanager

import (
	"context"
	"database/sql"

	"github.com/aliceout/nodea/internal/dbx"
	"github.com/aliceout/nodea/internal/server/repositories/records"
	"github.com/aliceout/nodea/internal/server/repositories/refreshtokens"
	"github.com/aliceout/nodea/internal/server/repositories/users"
)

// MemoryDSN selects the in-memory repositories instead of PostgreSQL.
const MemoryDSN = "memory"

// MemoryRepositoryManager hands out process-local repositories. The db
// handle passed to the factories is ignored; data is lost on exit.
type MemoryRepositoryManager struct {
	users         *users.InMemoryRepository
	refreshTokens *refreshtokens.InMemoryRepository
	records       *records.InMemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:         users.NewInMemoryRepository(),
		refreshTokens: refreshtokens.NewInMemoryRepository(),
		records:       records.NewInMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *MemoryRepositoryManager) Records(dbx.DBTX) records.Repository { return m.records }
